// Package media wraps the external binaries used to inspect and extract
// tracks from video containers. Adapted from the teacher's
// internal/core/media/mkv.go (mkvmerge/mkvextract wrapper), generalized so
// the probe binary is configurable (ffprobe by default) rather than
// hard-coded to MKVToolNix, since sublarr needs to inspect whatever
// container Sonarr/Radarr-managed files use.
package media

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Track is one media track inside a video container.
type Track struct {
	ID       int
	Type     string // video, audio, subtitles
	Codec    string
	Language string // ISO 639-2 code
	Name     string
	Default  bool
	Forced   bool
}

// FileInfo is the track/container metadata of one probed file.
type FileInfo struct {
	FileName      string
	Tracks        []Track
	ContainerType string
	DurationMS    int64
}

// ffprobeOutput is the subset of `ffprobe -print_format json -show_streams
// -show_format` this package consumes.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"` // seconds, as a string
	} `json:"format"`
}

type ffprobeStream struct {
	Index         int    `json:"index"`
	CodecType     string `json:"codec_type"`
	CodecName     string `json:"codec_name"`
	Disposition   struct {
		Default int `json:"default"`
		Forced  int `json:"forced"`
	} `json:"disposition"`
	Tags struct {
		Language string `json:"language"`
		Title    string `json:"title"`
	} `json:"tags"`
}

// Toolkit resolves probe/extract binaries and runs them. The default probe
// binary is ffprobe; ExtractBinary defaults to ffmpeg, since both ship
// together and cover every container sublarr encounters, unlike the
// teacher's MKV-only mkvmerge/mkvextract pair.
type Toolkit struct {
	ProbeBinary   string
	ExtractBinary string
	BinDir        string // optional override directory searched before PATH
}

// NewToolkit returns a Toolkit using ffprobe/ffmpeg resolved via binDir
// then PATH.
func NewToolkit(binDir string) *Toolkit {
	return &Toolkit{ProbeBinary: "ffprobe", ExtractBinary: "ffmpeg", BinDir: binDir}
}

func (t *Toolkit) binaryPath(name string) string {
	if t.BinDir != "" {
		candidate := filepath.Join(t.BinDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// CheckToolchain verifies the configured probe binary is resolvable and
// runs, generalizing the teacher's MKVToolNix/FFmpeg presence check
// (internal/core/dependencies/manager.go) from a fixed binary pair to
// whatever Toolkit is configured with.
func (t *Toolkit) CheckToolchain() error {
	bin := t.binaryPath(t.ProbeBinary)
	cmd := exec.Command(bin, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("probe binary %q not usable: %w", t.ProbeBinary, err)
	}
	return nil
}

// Analyze runs the probe binary against path and returns its track list,
// used by the acquisition pipeline and forced-classification signals to
// see what's already embedded without a full mkvmerge-style dump.
func (t *Toolkit) Analyze(path string) (*FileInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	bin := t.binaryPath(t.ProbeBinary)
	cmd := exec.Command(bin, "-v", "quiet", "-print_format", "json", "-show_streams", "-show_format", path)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("probe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("failed to execute probe: %w", err)
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse probe JSON: %w", err)
	}

	info := &FileInfo{
		FileName:      filepath.Base(path),
		ContainerType: raw.Format.FormatName,
		Tracks:        make([]Track, 0, len(raw.Streams)),
	}
	for _, s := range raw.Streams {
		info.Tracks = append(info.Tracks, Track{
			ID:       s.Index,
			Type:     s.CodecType,
			Codec:    s.CodecName,
			Language: s.Tags.Language,
			Name:     s.Tags.Title,
			Default:  s.Disposition.Default == 1,
			Forced:   s.Disposition.Forced == 1,
		})
	}
	return info, nil
}

// ExtractTrack demuxes one stream index to outputPath via the extract
// binary, mirroring the teacher's mkvextract "tracks file trackID:output"
// invocation with ffmpeg's "-map 0:index -c copy output" equivalent.
func (t *Toolkit) ExtractTrack(inputPath string, streamIndex int, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	bin := t.binaryPath(t.ExtractBinary)
	cmd := exec.Command(bin, "-y", "-i", inputPath, "-map", fmt.Sprintf("0:%d", streamIndex), "-c", "copy", outputPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("extract failed: %s: %w", string(out), err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("extraction completed but output file not found: %w", err)
	}
	return nil
}

// SubtitleTracks filters a FileInfo's tracks down to the subtitle ones.
func (fi *FileInfo) SubtitleTracks() []Track {
	var out []Track
	for _, tr := range fi.Tracks {
		if tr.Type == "subtitle" {
			out = append(out, tr)
		}
	}
	return out
}
