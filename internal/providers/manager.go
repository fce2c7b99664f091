package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/subtitle"
)

// cacheTTL is how long a provider's raw search response is reused before a
// fresh query is issued (§4.3).
const cacheTTL = time.Hour

// CacheStore is the subset of *store.ProviderCacheRepo the manager needs.
type CacheStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte, ttl time.Duration) error
}

// BlacklistStore is the subset of *store.BlacklistRepo the manager needs.
type BlacklistStore interface {
	IsBlacklisted(provider, contentHash string) (bool, error)
}

// Manager dispatches a search across every registered provider in
// parallel, each wrapped in its own circuit breaker, consults the response
// cache first, filters blacklisted results, and scores survivors.
type Manager struct {
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker[[]domain.SubtitleResult]
	cache     CacheStore
	blacklist BlacklistStore
	scorer    *Scorer
	log       zerolog.Logger
}

func NewManager(providerList []Provider, cache CacheStore, blacklist BlacklistStore, scorer *Scorer, log zerolog.Logger) *Manager {
	breakers := make(map[string]*gobreaker.CircuitBreaker[[]domain.SubtitleResult], len(providerList))
	for _, p := range providerList {
		breakers[p.Name()] = newBreaker(p.Name(), log)
	}
	return &Manager{
		providers: providerList,
		breakers:  breakers,
		cache:     cache,
		blacklist: blacklist,
		scorer:    scorer,
		log:       log.With().Str("component", "provider_manager").Logger(),
	}
}

// Search queries every provider concurrently, merges results, drops
// blacklisted ones, and returns them sorted best-first. A single
// provider's failure (network error, open breaker, parse error) never
// fails the overall search — it just contributes zero results, per §7's
// "ProviderError never propagates above the Provider Manager" rule.
func (m *Manager) Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	all := make([][]domain.SubtitleResult, len(m.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		i, p := i, p
		g.Go(func() error {
			results, err := m.searchOne(gctx, p, query)
			if err != nil {
				m.log.Warn().Err(err).Str("provider", p.Name()).Msg("provider search failed")
				return nil // isolate the failure, don't cancel siblings
			}
			all[i] = results
			return nil
		})
	}
	_ = g.Wait() // searchOne never returns a non-nil error to g, so this can't fail

	var merged []domain.SubtitleResult
	for _, results := range all {
		for _, r := range results {
			blacklisted, err := m.blacklist.IsBlacklisted(r.ProviderName, r.Hash)
			if err != nil {
				m.log.Error().Err(err).Msg("blacklist check failed, keeping result")
			} else if blacklisted {
				continue
			}
			merged = append(merged, r)
		}
	}

	if query.ForcedOnly {
		merged = filterForced(merged)
	}

	m.scorer.ScoreAll(merged, query)
	sortByScoreDesc(merged, m.scorer.ProviderModifiers())
	return merged, nil
}

// filterForced removes results the multi-signal classifier does not
// believe are forced subtitles, per §4.3 step 4: only providers that
// already filter natively on forced-ness can be trusted to return a
// clean set, so every result still goes through classification before
// ranking. No subtitle content is available yet at search time, so this
// only sees metadata signals (provider-reported Forced flag, release
// name); a stronger content signal is added once the candidate is
// downloaded (see acquisition.Pipeline.processForced).
func filterForced(results []domain.SubtitleResult) []domain.SubtitleResult {
	kept := results[:0]
	for _, r := range results {
		if forced, _ := subtitle.ClassifyResultForced(r, nil); forced {
			kept = append(kept, r)
		}
	}
	return kept
}

func (m *Manager) searchOne(ctx context.Context, p Provider, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	key := cacheKey(p.Name(), query)
	if cached, ok, err := m.cache.Get(key); err == nil && ok {
		var results []domain.SubtitleResult
		if jsonErr := json.Unmarshal(cached, &results); jsonErr == nil {
			return results, nil
		}
	}

	breaker := m.breakers[p.Name()]
	results, err := breaker.Execute(func() ([]domain.SubtitleResult, error) {
		return p.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(results); marshalErr == nil {
		if putErr := m.cache.Put(key, payload, cacheTTL); putErr != nil {
			m.log.Error().Err(putErr).Str("provider", p.Name()).Msg("failed to cache provider response")
		}
	}
	return results, nil
}

func cacheKey(provider string, query domain.VideoQuery) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%s|%s|%v",
		provider, query.Title, query.Season, query.Episode, query.Year,
		query.SourceLanguage, query.TargetLanguage, query.ForcedOnly)
	return hex.EncodeToString(h.Sum(nil))
}

// formatRank orders preferred subtitle formats for the tie-break
// comparator below; higher is better. Anything else sorts last.
func formatRank(f domain.SubtitleFormat) int {
	switch f {
	case domain.FormatASS:
		return 2
	case domain.FormatSRT:
		return 1
	default:
		return 0
	}
}

// sortByScoreDesc orders results best-first. Per §4.3 step 5, ties on
// Score are broken by preferred format, then provider priority
// (modifiers, the same per-provider bias the scorer itself applies),
// then higher uploader trust.
func sortByScoreDesc(results []domain.SubtitleResult, modifiers map[string]int) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := formatRank(a.Format), formatRank(b.Format); ra != rb {
			return ra > rb
		}
		if ma, mb := modifiers[a.ProviderName], modifiers[b.ProviderName]; ma != mb {
			return ma > mb
		}
		return a.UploaderTrust > b.UploaderTrust
	})
}
