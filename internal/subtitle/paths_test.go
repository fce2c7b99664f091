package subtitle

import (
	"testing"

	"github.com/Abrechen2/sublarr/internal/domain"
)

func TestCanonicalLanguageTagNormalizesVariants(t *testing.T) {
	cases := map[string]string{
		"PT_br": "pt-BR",
		"por":   "pt",
		"en":    "en",
	}
	for input, want := range cases {
		if got := CanonicalLanguageTag(input); got != want {
			t.Errorf("CanonicalLanguageTag(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestOutputPathFullAndForced(t *testing.T) {
	video := "/media/Show/S01E01.mkv"

	full := OutputPath(video, "pt-BR", domain.SubtitleFull, domain.FormatASS)
	if full != "/media/Show/S01E01.pt-BR.ass" {
		t.Fatalf("unexpected full path: %q", full)
	}

	forced := OutputPath(video, "pt-BR", domain.SubtitleForced, domain.FormatSRT)
	if forced != "/media/Show/S01E01.pt-BR.forced.srt" {
		t.Fatalf("unexpected forced path: %q", forced)
	}
}

func TestDetectExistingRecognizesBothFormats(t *testing.T) {
	video := "/media/Show/S01E01.mkv"
	existingSRT := "/media/Show/S01E01.pt-BR.srt"

	stat := func(p string) bool { return p == existingSRT }

	got := DetectExisting(video, "pt-BR", domain.SubtitleFull, stat)
	if got != domain.ExistingExternalSRT {
		t.Fatalf("expected ExistingExternalSRT, got %q", got)
	}

	got = DetectExisting(video, "pt-BR", domain.SubtitleForced, stat)
	if got != domain.ExistingNone {
		t.Fatalf("expected ExistingNone for forced lookup, got %q", got)
	}
}
