package media

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestBinaryPathPrefersBinDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	dir := t.TempDir()
	fake := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\necho fake\n"), 0o755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}

	tk := NewToolkit(dir)
	if got := tk.binaryPath("ffprobe"); got != fake {
		t.Fatalf("expected BinDir override %q, got %q", fake, got)
	}
}

func TestBinaryPathFallsBackToName(t *testing.T) {
	tk := NewToolkit("")
	if got := tk.binaryPath("definitely-not-a-real-binary-xyz"); got != "definitely-not-a-real-binary-xyz" {
		t.Fatalf("expected literal fallback, got %q", got)
	}
}

func TestSubtitleTracksFiltersByType(t *testing.T) {
	info := &FileInfo{Tracks: []Track{
		{Type: "video"},
		{Type: "audio"},
		{Type: "subtitle", Language: "jpn"},
		{Type: "subtitle", Language: "eng", Forced: true},
	}}
	subs := info.SubtitleTracks()
	if len(subs) != 2 {
		t.Fatalf("expected 2 subtitle tracks, got %d", len(subs))
	}
	if !subs[1].Forced {
		t.Fatal("expected second subtitle track to be forced")
	}
}

func TestAnalyzeErrorsOnMissingFile(t *testing.T) {
	tk := NewToolkit("")
	if _, err := tk.Analyze("/no/such/file.mkv"); err == nil {
		t.Fatal("expected error for missing input file")
	}
}
