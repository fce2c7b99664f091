package providers

import (
	"testing"

	"github.com/Abrechen2/sublarr/internal/domain"
)

type fakeWeightStore struct {
	weights   map[string]float64
	modifiers map[string]int
}

func (f *fakeWeightStore) Weights(scoreType domain.ScoreType) (map[string]float64, error) {
	return f.weights, nil
}
func (f *fakeWeightStore) ProviderModifiers() (map[string]int, error) { return f.modifiers, nil }

func TestScoreAllPrefersASSAndForcedMatch(t *testing.T) {
	store := &fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}}
	scorer := NewScorer(store)

	results := []domain.SubtitleResult{
		{ProviderName: "a", Format: domain.FormatSRT, Forced: false},
		{ProviderName: "b", Format: domain.FormatASS, Forced: true},
	}
	query := domain.VideoQuery{ForcedOnly: true}

	scorer.ScoreAll(results, query)

	if results[1].Score <= results[0].Score {
		t.Fatalf("expected ASS+forced-match result to outscore SRT non-match: %+v", results)
	}
}

func TestScoreAllAppliesProviderModifier(t *testing.T) {
	store := &fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{"trusted": 50}}
	scorer := NewScorer(store)

	results := []domain.SubtitleResult{
		{ProviderName: "untrusted", Format: domain.FormatSRT},
		{ProviderName: "trusted", Format: domain.FormatSRT},
	}
	scorer.ScoreAll(results, domain.VideoQuery{})

	if results[1].Score-results[0].Score < 50 {
		t.Fatalf("expected provider modifier to add at least 50 points: %+v", results)
	}
}

func TestScoreAllPenalizesHighMTConfidence(t *testing.T) {
	store := &fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}}
	scorer := NewScorer(store)

	results := []domain.SubtitleResult{
		{ProviderName: "a", Format: domain.FormatSRT, MTConfidence: 0},
		{ProviderName: "b", Format: domain.FormatSRT, MTConfidence: 100},
	}
	scorer.ScoreAll(results, domain.VideoQuery{})

	if results[0].Score <= results[1].Score {
		t.Fatalf("expected machine-translated result to score lower: %+v", results)
	}
}
