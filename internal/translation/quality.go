package translation

import (
	"context"
	"strconv"
)

// QualityStats summarizes a self-evaluation pass over one subtitle's
// translated lines, aggregated into job stats per §4.4.
type QualityStats struct {
	AvgQuality      float64 `json:"avg_quality"`
	MinQuality      int     `json:"min_quality"`
	LowQualityLines int     `json:"low_quality_lines"`
	QualityThreshold int    `json:"quality_threshold"`
}

// LineScore pairs one line ID with its quality score. The acquisition
// pipeline's `<subtitle>.quality.json` sidecar holds QualityStats, not
// LineScore entries.
type LineScore struct {
	ID    int `json:"i"`
	Score int `json:"score"`
}

// evaluateBatch asks backend to self-evaluate translated against source,
// per §4.4: "ask the same (or next-preferred LLM) backend to score each
// output line 0-100". Any failure to call or parse the scoring response
// silently falls back to 50 for every line and never blocks the pipeline.
func evaluateBatch(ctx context.Context, backend Backend, sourceLang, targetLang string, source, translated []Line) map[int]int {
	scores := make(map[int]int, len(translated))
	for _, l := range translated {
		scores[l.ID] = 50
	}

	prompt := BuildScoringPrompt(sourceLang, targetLang, source)
	result, err := backend.SendBatch(ctx, translated, prompt)
	if err != nil {
		return scores
	}

	for _, l := range result {
		n, parseErr := strconv.Atoi(l.Text)
		if parseErr != nil {
			continue
		}
		if n < 0 {
			n = 0
		}
		if n > 100 {
			n = 100
		}
		scores[l.ID] = n
	}
	return scores
}

func aggregateQuality(best map[int]int, threshold int) QualityStats {
	if len(best) == 0 {
		return QualityStats{QualityThreshold: threshold}
	}
	sum, min, low := 0, 101, 0
	for _, score := range best {
		sum += score
		if score < min {
			min = score
		}
		if score < threshold {
			low++
		}
	}
	return QualityStats{
		AvgQuality:       float64(sum) / float64(len(best)),
		MinQuality:       min,
		LowQualityLines:  low,
		QualityThreshold: threshold,
	}
}
