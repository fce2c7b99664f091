package subtitle

import (
	"strings"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// Signal is one (label, confidence) observation a single detector
// contributes toward a Classifier decision.
type Signal[T comparable] struct {
	Label      T
	Confidence float64
}

// Classifier aggregates independent weak signals into one label decision:
// MinAgree or more signals agreeing on the same label at ConfidenceFloor or
// better decide together (their confidences averaged), or any single
// signal at SoloThreshold or better decides alone. Generic over the label
// space so the same aggregation rule backs forced-subtitle detection
// (T = bool) and any other multi-signal classification sharing the same
// "two-agree-or-one-strong" shape (§9's shared Classifier[T] pattern, also
// the shape the MT-confidence gate would use if sublarr ever computed its
// own MT signals instead of taking mt_confidence from provider metadata).
type Classifier[T comparable] struct {
	ConfidenceFloor float64
	SoloThreshold   float64
	MinAgree        int
	Default         T
}

// Classify returns Default, 0 when no rule fires — line count or any
// single weak signal alone is never decisive.
func (c Classifier[T]) Classify(signals []Signal[T]) (label T, confidence float64) {
	for _, s := range signals {
		if s.Confidence >= c.SoloThreshold {
			return s.Label, s.Confidence
		}
	}

	counts := make(map[T]int, len(signals))
	sums := make(map[T]float64, len(signals))
	for _, s := range signals {
		if s.Confidence < c.ConfidenceFloor {
			continue
		}
		counts[s.Label]++
		sums[s.Label] += s.Confidence
	}

	minAgree := c.MinAgree
	if minAgree == 0 {
		minAgree = 2
	}
	var best T
	var bestCount int
	var bestSum float64
	for label, count := range counts {
		if count > bestCount {
			best, bestCount, bestSum = label, count, sums[label]
		}
	}
	if bestCount >= minAgree {
		return best, bestSum / float64(bestCount)
	}
	return c.Default, 0
}

// signsStyleHint matches style names ASS authors conventionally use for
// on-screen text (signs, titles, captions) as opposed to spoken dialogue.
var signsStyleHint = []string{"sign", "title", "caption", "op", "ed", "credit", "karaoke"}

// ForcedClassifier implements §4.3/§4.5/P9's forced-classification rule:
// one signal at 0.9 or better decides alone at its own confidence (checked
// first); otherwise two signals agreeing at confidence 0.5 or better decide
// together at their averaged confidence, so two 0.6 signals land at 0.6.
var ForcedClassifier = Classifier[bool]{ConfidenceFloor: 0.5, SoloThreshold: 0.9, MinAgree: 2, Default: false}

// ForcedSignals builds every forced-vs-full signal available for a
// provider search result: its own forced flag (the provider's stand-in
// for ffprobe's disposition.forced when it surfaces one), release-name
// conventions, and — once downloaded and parsed — its ASS all-signs style
// distribution. lines is nil before download; pass it once the body has
// been fetched and parsed to add the content signal.
func ForcedSignals(r domain.SubtitleResult, lines []Line) []Signal[bool] {
	return TrackForcedSignals(r.Forced, r.ReleaseInfo, lines)
}

// TrackForcedSignals builds the same signal set from embedded-track
// metadata (ffprobe disposition.forced, stream title) plus optional
// parsed content, so the same aggregation rule classifies a container's
// own subtitle track as well as a provider search result.
func TrackForcedSignals(dispositionForced bool, nameOrTitle string, lines []Line) []Signal[bool] {
	var signals []Signal[bool]
	if dispositionForced {
		signals = append(signals, Signal[bool]{Label: true, Confidence: 0.95})
	}
	if s, ok := releaseNameSignal(nameOrTitle); ok {
		signals = append(signals, s)
	}
	if lines != nil {
		if s, ok := allSignsDistributionSignal(lines); ok {
			signals = append(signals, s)
		}
	}
	return signals
}

// releaseNameSignal matches the `.forced.`/`.signs.` filename convention
// (strong) or a bare "forced"/"sign" word (weaker) in a release name or
// stream title.
func releaseNameSignal(name string) (Signal[bool], bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, ".forced.") || strings.Contains(lower, ".signs."):
		return Signal[bool]{Label: true, Confidence: 0.9}, true
	case strings.Contains(lower, "forced") || strings.Contains(lower, "sign"):
		return Signal[bool]{Label: true, Confidence: 0.6}, true
	}
	return Signal[bool]{}, false
}

// allSignsDistributionSignal reports the fraction of non-empty lines
// carrying a signs-style name. §4.5: line count alone is never decisive,
// so this only contributes a signal once the distribution clears 0.5 —
// below the ConfidenceFloor it wouldn't move the aggregate anyway, and a
// bare majority of signs-styled lines still isn't strong enough to decide
// alone (that requires ForcedClassifier.SoloThreshold, i.e. ratio >= 0.9).
func allSignsDistributionSignal(lines []Line) (Signal[bool], bool) {
	var total, signish int
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		total++
		style := strings.ToLower(l.Style)
		for _, hint := range signsStyleHint {
			if strings.Contains(style, hint) {
				signish++
				break
			}
		}
	}
	if total == 0 {
		return Signal[bool]{}, false
	}
	ratio := float64(signish) / float64(total)
	if ratio <= 0.5 {
		return Signal[bool]{}, false
	}
	return Signal[bool]{Label: true, Confidence: ratio}, true
}

// ClassifyResultForced runs ForcedClassifier over a provider result's
// available signals. lines is nil before download.
func ClassifyResultForced(r domain.SubtitleResult, lines []Line) (forced bool, confidence float64) {
	return ForcedClassifier.Classify(ForcedSignals(r, lines))
}

// SplitDialogAndSigns partitions an ASS file's lines into spoken dialogue
// (translated) and signs/songs (passed through verbatim, per §4.4's rule
// that on-screen text isn't machine-translated), using the same style-name
// heuristic ForcedClassifier's content signal is built from, but applied
// per line instead of aggregated file-wide.
func SplitDialogAndSigns(lines []Line) (dialog, signs []Line) {
	for _, l := range lines {
		style := strings.ToLower(l.Style)
		isSign := false
		for _, hint := range signsStyleHint {
			if strings.Contains(style, hint) {
				isSign = true
				break
			}
		}
		if isSign {
			signs = append(signs, l)
		} else {
			dialog = append(dialog, l)
		}
	}
	return dialog, signs
}
