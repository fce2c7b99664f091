package scanner

import (
	"testing"
)

func TestIsVideoFileAcceptsKnownExtensions(t *testing.T) {
	cases := map[string]bool{
		"/m/Show/S01E01.mkv": true,
		"/m/Show/S01E01.MKV": true,
		"/m/Show/S01E01.mp4": true,
		"/m/Show/S01E01.avi": true,
		"/m/Show/S01E01.srt": false,
		"/m/Show/S01E01.ass": false,
		"/m/Show/readme.txt": false,
	}
	for path, want := range cases {
		if got := isVideoFile(path); got != want {
			t.Errorf("isVideoFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewWatcherFailsOnMissingDirectory(t *testing.T) {
	s := newTestScanner(&fakeInventory{}, &fakeWanted{}, newFakeConfig())
	_, err := NewWatcher(s, s.Log, "/no/such/directory/sublarr-test")
	if err == nil {
		t.Fatal("expected an error adding a nonexistent directory")
	}
}

func TestNewWatcherSucceedsOnRealDirectory(t *testing.T) {
	s := newTestScanner(&fakeInventory{}, &fakeWanted{}, newFakeConfig())
	dir := t.TempDir()

	w, err := NewWatcher(s, s.Log, dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	w.Start()
}
