package acquisition

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/subtitle"
	"github.com/Abrechen2/sublarr/internal/translation"
)

// translateSubtitle translates a parsed subtitle's dialogue lines, leaving
// ASS signs/songs styles untouched per §4.4's "dialog/signs awareness"
// rule, and writes a `<subtitle>.quality.json` sidecar on every call. The
// sidecar holds the batch's aggregate QualityStats, not per-line scores.
func translateSubtitle(ctx context.Context, translator *translation.Manager, file *subtitle.File, outputPath string, opts translation.Options) (translation.QualityStats, error) {
	var dialog, signs []subtitle.Line
	if file.Format == domain.FormatASS || file.Format == domain.FormatSSA {
		dialog, signs = subtitle.SplitDialogAndSigns(file.Lines)
	} else {
		dialog = file.Lines
	}

	payload := make([]translation.Line, len(dialog))
	for i, l := range dialog {
		payload[i] = translation.Line{ID: l.Index, Text: l.Text}
	}

	result, err := translator.TranslateBatch(ctx, payload, opts)
	if err != nil {
		return translation.QualityStats{}, err
	}

	byID := make(map[int]string, len(result.Lines))
	for _, l := range result.Lines {
		byID[l.ID] = l.Text
	}

	translated := make([]subtitle.Line, len(dialog))
	for i, l := range dialog {
		translated[i] = l
		if text, ok := byID[l.Index]; ok {
			translated[i].Text = text
		}
	}

	merged := append(append([]subtitle.Line{}, translated...), signs...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })
	file.Lines = merged

	if err := writeQualitySidecar(outputPath, result.Stats); err != nil {
		// Sidecar is diagnostic only; never block the pipeline on it (§4.6).
		_ = err
	}

	return result.Stats, nil
}

func writeQualitySidecar(subtitlePath string, stats translation.QualityStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	sidecarPath := subtitlePath + ".quality.json"
	return os.WriteFile(sidecarPath, data, 0644)
}

// loadSRTReference loads a same-video target-language SRT as reference
// lines for the translation prompt (§4.6's "SRT-reference enhancement").
func loadSRTReference(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := subtitle.ParseFile(path)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(file.Lines))
	for i, l := range file.Lines {
		lines[i] = l.Text
	}
	return lines, nil
}
