package subtitle

import (
	"testing"

	"github.com/Abrechen2/sublarr/internal/domain"
)

func TestClassifierSoloThresholdDecidesAlone(t *testing.T) {
	c := Classifier[bool]{ConfidenceFloor: 0.5, SoloThreshold: 0.9, MinAgree: 2}
	label, confidence := c.Classify([]Signal[bool]{{Label: true, Confidence: 0.95}})
	if !label || confidence != 0.95 {
		t.Fatalf("expected a single strong signal to decide alone, got label=%v confidence=%v", label, confidence)
	}
}

func TestClassifierSingleWeakSignalDoesNotDecide(t *testing.T) {
	c := Classifier[bool]{ConfidenceFloor: 0.5, SoloThreshold: 0.9, MinAgree: 2}
	label, confidence := c.Classify([]Signal[bool]{{Label: true, Confidence: 0.6}})
	if label || confidence != 0 {
		t.Fatalf("expected one sub-solo signal to fall back to the default, got label=%v confidence=%v", label, confidence)
	}
}

func TestClassifierTwoAgreeingSignalsAverage(t *testing.T) {
	c := Classifier[bool]{ConfidenceFloor: 0.5, SoloThreshold: 0.9, MinAgree: 2}
	label, confidence := c.Classify([]Signal[bool]{
		{Label: true, Confidence: 0.5},
		{Label: true, Confidence: 0.7},
	})
	if !label || confidence != 0.6 {
		t.Fatalf("expected two agreeing signals to average to 0.6, got label=%v confidence=%v", label, confidence)
	}
}

func TestForcedClassifierDispositionAloneDecides(t *testing.T) {
	forced, confidence := ForcedClassifier.Classify(TrackForcedSignals(true, "", nil))
	if !forced || confidence != 0.95 {
		t.Fatalf("expected disposition.forced alone to classify as forced, got forced=%v confidence=%v", forced, confidence)
	}
}

func TestForcedClassifierWeakReleaseWordAloneIsNotEnough(t *testing.T) {
	forced, _ := ForcedClassifier.Classify(TrackForcedSignals(false, "Show.S01E01.signed.en.srt", nil))
	if forced {
		t.Fatal("expected a single weak release-name signal to not decide alone")
	}
}

func TestForcedClassifierReleaseNamePatternAloneDecides(t *testing.T) {
	forced, confidence := ForcedClassifier.Classify(TrackForcedSignals(false, "Show.S01E01.forced.en.srt", nil))
	if !forced || confidence != 0.9 {
		t.Fatalf("expected the dotted .forced. convention to decide alone at 0.9, got forced=%v confidence=%v", forced, confidence)
	}
}

func TestForcedClassifierCombinesReleaseNameAndContentSignals(t *testing.T) {
	lines := []Line{
		{Style: "Sign", Text: "STORE SIGN"},
		{Style: "Title", Text: "EPISODE TITLE"},
		{Style: "Sign", Text: "EXIT"},
		{Style: "Default", Text: "hello"},
		{Style: "Default", Text: "goodbye"},
	}
	forced, confidence := ForcedClassifier.Classify(TrackForcedSignals(false, "Show.S01E01.signed.subs", lines))
	if !forced || confidence != 0.6 {
		t.Fatalf("expected release-name + 3-of-5 signs content to agree at 0.6, got forced=%v confidence=%v", forced, confidence)
	}
}

func TestClassifyResultForcedUsesProviderMetadata(t *testing.T) {
	forced, _ := ClassifyResultForced(domain.SubtitleResult{Forced: true}, nil)
	if !forced {
		t.Fatal("expected a provider-reported forced result to classify as forced")
	}
}

func TestClassifyResultForcedDefaultsFalseWithoutSignals(t *testing.T) {
	forced, confidence := ClassifyResultForced(domain.SubtitleResult{}, nil)
	if forced || confidence != 0 {
		t.Fatalf("expected no signals to default to not-forced, got forced=%v confidence=%v", forced, confidence)
	}
}

func TestSplitDialogAndSigns(t *testing.T) {
	lines := []Line{
		{Style: "Default", Text: "hello"},
		{Style: "Sign", Text: "EXIT"},
		{Style: "Karaoke", Text: "la la la"},
	}
	dialog, signs := SplitDialogAndSigns(lines)
	if len(dialog) != 1 || dialog[0].Text != "hello" {
		t.Fatalf("unexpected dialog split: %+v", dialog)
	}
	if len(signs) != 2 {
		t.Fatalf("expected 2 signs lines, got %d", len(signs))
	}
}
