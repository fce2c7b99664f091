// Package subtitle is the format toolkit (C5): ASS/SRT parsing and
// reassembly, dialog-vs-signs style classification, canonical output path
// derivation and archive extraction. Parsing and reassembly are adapted
// directly from the teacher's internal/core/parser/parser.go, which already
// implements both formats; everything else is new.
package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// Line is one subtitle event, format-agnostic except for the ASS-only
// fields (Layer/Margin*/Effect/Style), which SRT lines leave zeroed.
type Line struct {
	Index      int
	StartTime  string
	EndTime    string
	Text       string
	Style      string
	OriginalID int
	Layer      int
	MarginL    int
	MarginR    int
	MarginV    int
	Effect     string
	RawEvent   string
}

// File is a parsed subtitle document.
type File struct {
	Format       domain.SubtitleFormat
	Header       string
	Lines        []Line
	EventsHeader string // ASS only: the Format: line for the Events section
}

// ParseFile dispatches to the ASS or SRT parser by sniffing the file's
// content rather than trusting its extension, since providers and
// extracted archive members don't always carry a reliable one.
func ParseFile(path string) (*File, error) {
	format, err := SniffFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case domain.FormatASS, domain.FormatSSA:
		return parseASS(path, format)
	default:
		return parseSRT(path)
	}
}

// SniffFormat reads the first non-empty lines of path and classifies its
// container format by content rather than extension.
func SniffFormat(path string) (domain.SubtitleFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sniff format: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineRegex := regexp.MustCompile(`^\s*\d+\s*$`)
	timeRegex := regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)

	var sawIndexLine bool
	for scanner.Scan() && scanner.Err() == nil {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "[Script Info]"):
			return domain.FormatASS, nil
		case strings.HasPrefix(line, "WEBVTT"):
			return domain.FormatVTT, nil
		case timeRegex.MatchString(line) && sawIndexLine:
			return domain.FormatSRT, nil
		case lineRegex.MatchString(line):
			sawIndexLine = true
		}
	}
	// Fall back to extension if content sniffing was inconclusive (e.g. a
	// truncated or header-only file).
	if strings.HasSuffix(strings.ToLower(path), ".ssa") {
		return domain.FormatSSA, nil
	}
	if strings.HasSuffix(strings.ToLower(path), ".srt") {
		return domain.FormatSRT, nil
	}
	return domain.FormatASS, nil
}

func parseASS(path string, format domain.SubtitleFormat) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ASS file: %w", err)
	}
	defer file.Close()

	sf := &File{Format: format}
	scanner := bufio.NewScanner(file)

	var headerBuilder strings.Builder
	var inEventsSection bool
	lineIndex := 0

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "[Events]") {
			inEventsSection = true
			headerBuilder.WriteString(line + "\n")
			continue
		} else if strings.HasPrefix(line, "[") && inEventsSection {
			inEventsSection = false
		}

		if inEventsSection {
			if strings.HasPrefix(line, "Format:") {
				sf.EventsHeader = line
				headerBuilder.WriteString(line + "\n")
				continue
			}

			if strings.HasPrefix(line, "Dialogue:") {
				dialoguePart := strings.TrimPrefix(line, "Dialogue:")
				parts := strings.SplitN(dialoguePart, ",", 10)
				if len(parts) >= 10 {
					subLine := Line{
						Index:      lineIndex,
						StartTime:  strings.TrimSpace(parts[1]),
						EndTime:    strings.TrimSpace(parts[2]),
						Style:      strings.TrimSpace(parts[3]),
						Text:       strings.TrimSpace(parts[9]),
						RawEvent:   line,
						OriginalID: lineIndex,
					}
					if layer, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
						subLine.Layer = layer
					}
					if marginL, err := strconv.Atoi(strings.TrimSpace(parts[5])); err == nil {
						subLine.MarginL = marginL
					}
					if marginR, err := strconv.Atoi(strings.TrimSpace(parts[6])); err == nil {
						subLine.MarginR = marginR
					}
					if marginV, err := strconv.Atoi(strings.TrimSpace(parts[7])); err == nil {
						subLine.MarginV = marginV
					}
					subLine.Effect = strings.TrimSpace(parts[8])

					sf.Lines = append(sf.Lines, subLine)
					lineIndex++
				}
			}
		} else {
			headerBuilder.WriteString(line + "\n")
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}

	sf.Header = headerBuilder.String()
	return sf, nil
}

func parseSRT(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT file: %w", err)
	}
	defer file.Close()

	sf := &File{Format: domain.FormatSRT}
	scanner := bufio.NewScanner(file)

	var currentLine Line
	var textBuilder strings.Builder
	state := 0 // 0=expecting index, 1=expecting timing, 2=expecting text

	timeRegex := regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case 0:
			if line == "" {
				continue
			}
			if idx, err := strconv.Atoi(line); err == nil {
				currentLine = Line{Index: idx, OriginalID: idx}
				state = 1
			}
		case 1:
			if matches := timeRegex.FindStringSubmatch(line); len(matches) >= 3 {
				currentLine.StartTime = matches[1]
				currentLine.EndTime = matches[2]
				textBuilder.Reset()
				state = 2
			}
		case 2:
			if line == "" {
				currentLine.Text = strings.TrimSpace(textBuilder.String())
				if currentLine.Text != "" {
					sf.Lines = append(sf.Lines, currentLine)
				}
				state = 0
			} else {
				if textBuilder.Len() > 0 {
					textBuilder.WriteString("\n")
				}
				textBuilder.WriteString(line)
			}
		}
	}

	if state == 2 && textBuilder.Len() > 0 {
		currentLine.Text = strings.TrimSpace(textBuilder.String())
		sf.Lines = append(sf.Lines, currentLine)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT file: %w", err)
	}
	return sf, nil
}

// ParseBytes parses subtitle content held in memory (a provider download or
// an extracted-track buffer) by spilling it to a temp file and reusing
// ParseFile's sniffing/parsing, rather than duplicating that logic for an
// in-memory path.
func ParseBytes(data []byte, format domain.SubtitleFormat) (*File, error) {
	tmp, err := os.CreateTemp("", "sublarr-parse-*."+string(format))
	if err != nil {
		return nil, fmt.Errorf("parse bytes: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("parse bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("parse bytes: %w", err)
	}
	return ParseFile(tmp.Name())
}

// Render serializes a File back to its on-disk textual form, dispatching to
// ReassembleASS or ReassembleSRT by format.
func Render(f *File) ([]byte, error) {
	switch f.Format {
	case domain.FormatASS, domain.FormatSSA:
		return []byte(ReassembleASS(f.Header, f.Lines)), nil
	case domain.FormatSRT:
		return []byte(ReassembleSRT(f.Lines)), nil
	default:
		return nil, fmt.Errorf("render: unsupported format %q", f.Format)
	}
}

// BatchLines groups lines into fixed-size chunks for batched translation
// calls.
func BatchLines(lines []Line, size int) [][]Line {
	batches := [][]Line{}
	for i := 0; i < len(lines); i += size {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[i:end])
	}
	return batches
}

// ReassembleASS reconstructs an ASS document from its header and a set of
// (possibly translated) dialogue lines. Layer, timing, style, margins,
// effect and text come from each Line; the Name field is written empty and
// margins are zero-padded to four digits, so the output is not
// byte-identical to the parsed input.
func ReassembleASS(header string, lines []Line) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, line := range lines {
		fmt.Fprintf(&sb, "Dialogue: %d,%s,%s,%s,,%04d,%04d,%04d,%s,%s\n",
			line.Layer, line.StartTime, line.EndTime, line.Style,
			line.MarginL, line.MarginR, line.MarginV, line.Effect, line.Text)
	}
	return sb.String()
}

// ReassembleSRT renumbers lines sequentially and renders SubRip syntax.
func ReassembleSRT(lines []Line) string {
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, line.StartTime, line.EndTime, line.Text)
	}
	return sb.String()
}
