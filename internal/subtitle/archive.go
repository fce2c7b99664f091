package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// subtitleExtensions is the set of container extensions Extract will surface
// from inside an archive; anything else (readme files, NFOs) is ignored.
var subtitleExtensions = map[string]bool{".srt": true, ".ass": true, ".ssa": true, ".vtt": true}

// ExtractSubtitles unpacks archivePath (as delivered by a provider,
// typically .zip or .rar) into a fresh temp directory and returns the
// paths of every subtitle file found inside, rejecting any archive member
// whose name would escape the extraction directory via ".." path
// traversal. Grounded on the teacher's internal/core/dependencies/
// manager.go Extract function, which uses the same archiver.Unarchive +
// filepath.Walk pattern to pull named targets out of a downloaded archive.
func ExtractSubtitles(archivePath string) ([]string, error) {
	tempDir, err := os.MkdirTemp("", "sublarr-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}

	if err := archiver.Unarchive(archivePath, tempDir); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	var found []string
	walkErr := filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !withinDir(tempDir, path) {
			return fmt.Errorf("archive member escapes extraction dir: %s", path)
		}
		ext := strings.ToLower(filepath.Ext(path))
		if subtitleExtensions[ext] {
			found = append(found, path)
		}
		return nil
	})
	if walkErr != nil {
		os.RemoveAll(tempDir)
		return nil, walkErr
	}
	if len(found) == 0 {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("no subtitle files found in archive %s", archivePath)
	}
	return found, nil
}

// withinDir reports whether path, once resolved, stays inside root. It
// guards against a zip-slip style member name (e.g. "../../etc/passwd")
// that archiver itself already rejects for most formats, but is checked
// again here defensively since behavior varies by archive type.
func withinDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}
