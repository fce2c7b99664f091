package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
)

type fakeProvider struct {
	name    string
	results []domain.SubtitleResult
	err     error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}
func (f *fakeProvider) Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error) {
	return nil, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

type memCache struct{ data map[string][]byte }

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }
func (m *memCache) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memCache) Put(key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

type memBlacklist struct{ blocked map[string]bool }

func (m *memBlacklist) IsBlacklisted(provider, contentHash string) (bool, error) {
	return m.blocked[provider+":"+contentHash], nil
}

func TestManagerSearchMergesAcrossProviders(t *testing.T) {
	p1 := &fakeProvider{name: "p1", results: []domain.SubtitleResult{{ProviderName: "p1", Format: domain.FormatSRT, Hash: "h1"}}}
	p2 := &fakeProvider{name: "p2", results: []domain.SubtitleResult{{ProviderName: "p2", Format: domain.FormatASS, Hash: "h2"}}}

	scorer := NewScorer(&fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{p1, p2}, newMemCache(), &memBlacklist{blocked: map[string]bool{}}, scorer, zerolog.Nop())

	results, err := mgr.Search(context.Background(), domain.VideoQuery{Title: "Show"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 merged results, got %d", len(results))
	}
	// ASS should outrank SRT with default weights.
	if results[0].ProviderName != "p2" {
		t.Fatalf("expected ASS result to rank first, got %+v", results)
	}
}

func TestManagerSearchIsolatesProviderFailure(t *testing.T) {
	good := &fakeProvider{name: "good", results: []domain.SubtitleResult{{ProviderName: "good", Hash: "h"}}}
	bad := &fakeProvider{name: "bad", err: errors.New("network error")}

	scorer := NewScorer(&fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{good, bad}, newMemCache(), &memBlacklist{blocked: map[string]bool{}}, scorer, zerolog.Nop())

	results, err := mgr.Search(context.Background(), domain.VideoQuery{Title: "Show"})
	if err != nil {
		t.Fatalf("expected Search to tolerate a failing provider, got err: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result from the surviving provider, got %d", len(results))
	}
}

func TestManagerSearchFiltersBlacklisted(t *testing.T) {
	p := &fakeProvider{name: "p", results: []domain.SubtitleResult{
		{ProviderName: "p", Hash: "blocked"},
		{ProviderName: "p", Hash: "ok"},
	}}
	scorer := NewScorer(&fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{p}, newMemCache(), &memBlacklist{blocked: map[string]bool{"p:blocked": true}}, scorer, zerolog.Nop())

	results, err := mgr.Search(context.Background(), domain.VideoQuery{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Hash != "ok" {
		t.Fatalf("expected blacklisted result filtered out, got %+v", results)
	}
}

func TestManagerSearchCachesResponses(t *testing.T) {
	calls := 0
	p := &countingProvider{name: "p", calls: &calls, results: []domain.SubtitleResult{{ProviderName: "p", Hash: "h"}}}
	scorer := NewScorer(&fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{p}, newMemCache(), &memBlacklist{blocked: map[string]bool{}}, scorer, zerolog.Nop())

	q := domain.VideoQuery{Title: "Show", Season: 1, Episode: 1}
	if _, err := mgr.Search(context.Background(), q); err != nil {
		t.Fatalf("first Search failed: %v", err)
	}
	if _, err := mgr.Search(context.Background(), q); err != nil {
		t.Fatalf("second Search failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected provider called once due to caching, got %d calls", calls)
	}
}

func TestManagerSearchRemovesNonForcedWhenForcedOnly(t *testing.T) {
	p := &fakeProvider{name: "p", results: []domain.SubtitleResult{
		{ProviderName: "p", Hash: "full", Format: domain.FormatSRT, Score: 0},
		{ProviderName: "p", Hash: "forced", Format: domain.FormatSRT, Forced: true, Score: 0},
	}}
	scorer := NewScorer(&fakeWeightStore{weights: map[string]float64{}, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{p}, newMemCache(), &memBlacklist{blocked: map[string]bool{}}, scorer, zerolog.Nop())

	results, err := mgr.Search(context.Background(), domain.VideoQuery{ForcedOnly: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Hash != "forced" {
		t.Fatalf("expected only the forced-classified result to survive, got %+v", results)
	}
}

func TestManagerSearchTieBreaksByFormatThenModifierThenTrust(t *testing.T) {
	p := &fakeProvider{name: "p", results: []domain.SubtitleResult{
		{ProviderName: "low", Hash: "srt", Format: domain.FormatSRT, UploaderTrust: 20},
		{ProviderName: "low", Hash: "ass", Format: domain.FormatASS, UploaderTrust: 0},
	}}
	// Equalize weights so both land at the same Score, isolating the tie-break.
	weights := map[string]float64{
		"format_ass": 0, "format_srt": 0, "forced_match": 0,
		"mt_penalty": 0, "mt_threshold": 1000, "uploader_trust": 0, "release_match": 0,
	}
	scorer := NewScorer(&fakeWeightStore{weights: weights, modifiers: map[string]int{}})
	mgr := NewManager([]Provider{p}, newMemCache(), &memBlacklist{blocked: map[string]bool{}}, scorer, zerolog.Nop())

	results, err := mgr.Search(context.Background(), domain.VideoQuery{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 || results[0].Hash != "ass" {
		t.Fatalf("expected ASS to win the tie-break over SRT, got %+v", results)
	}
}

type countingProvider struct {
	name    string
	calls   *int
	results []domain.SubtitleResult
}

func (c *countingProvider) Name() string { return c.name }
func (c *countingProvider) Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	*c.calls++
	return c.results, nil
}
func (c *countingProvider) Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error) {
	return nil, nil
}
func (c *countingProvider) HealthCheck(ctx context.Context) error { return nil }
