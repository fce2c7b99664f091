package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archiver/v3"
)

func TestExtractSubtitlesFindsSubtitleMembers(t *testing.T) {
	dir := t.TempDir()
	srtPath := filepath.Join(dir, "movie.en.srt")
	if err := os.WriteFile(srtPath, []byte(sampleSRT), 0o644); err != nil {
		t.Fatalf("failed to write fixture srt: %v", err)
	}
	readmePath := filepath.Join(dir, "README.txt")
	if err := os.WriteFile(readmePath, []byte("uploaded by someone"), 0o644); err != nil {
		t.Fatalf("failed to write fixture readme: %v", err)
	}

	archivePath := filepath.Join(dir, "result.zip")
	if err := archiver.Archive([]string{srtPath, readmePath}, archivePath); err != nil {
		t.Fatalf("failed to build fixture archive: %v", err)
	}

	found, err := ExtractSubtitles(archivePath)
	if err != nil {
		t.Fatalf("ExtractSubtitles failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly 1 subtitle file extracted, got %d: %v", len(found), found)
	}
	if filepath.Base(found[0]) != "movie.en.srt" {
		t.Fatalf("unexpected extracted file: %q", found[0])
	}
}

func TestExtractSubtitlesErrorsOnNoSubtitles(t *testing.T) {
	dir := t.TempDir()
	readmePath := filepath.Join(dir, "README.txt")
	if err := os.WriteFile(readmePath, []byte("nothing to see here"), 0o644); err != nil {
		t.Fatalf("failed to write fixture readme: %v", err)
	}
	archivePath := filepath.Join(dir, "empty.zip")
	if err := archiver.Archive([]string{readmePath}, archivePath); err != nil {
		t.Fatalf("failed to build fixture archive: %v", err)
	}

	if _, err := ExtractSubtitles(archivePath); err == nil {
		t.Fatal("expected an error when archive has no subtitle members")
	}
}
