package providers

import (
	"sync"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// snapshotTTL bounds how long a loaded weight/modifier snapshot is reused
// before the next scoring call reloads it, so an operator's weight change
// (I4) takes effect within a bounded window instead of needing a restart.
const snapshotTTL = 60 * time.Second

// WeightStore is the subset of *store.ScoringRepo the scorer needs.
type WeightStore interface {
	Weights(scoreType domain.ScoreType) (map[string]float64, error)
	ProviderModifiers() (map[string]int, error)
}

// defaultWeights seed a fresh database with sane starting values; an
// operator overriding any key via ScoringRepo.SetWeight takes precedence
// once loaded.
var defaultWeights = map[string]float64{
	"format_ass":     15,
	"format_srt":     5,
	"forced_match":   10,
	"mt_penalty":     -30,
	"mt_threshold":   50, // mt_penalty only applies once MTConfidence reaches this
	"uploader_trust": 1,  // multiplier applied to UploaderTrust (0-20)
	"release_match":  8,
}

type snapshot struct {
	weights   map[string]float64
	modifiers map[string]int
	loadedAt  time.Time
}

// Scorer computes a composite score for each subtitle search result,
// grounded on the weights+modifiers+penalty table layout used by
// jatassi-SlipStream's ScoringContext, generalized to sublarr's result
// fields (format, forced match, MT confidence, uploader trust).
type Scorer struct {
	store WeightStore
	mu    sync.Mutex
	snap  snapshot
}

func NewScorer(store WeightStore) *Scorer {
	return &Scorer{store: store}
}

func (s *Scorer) current() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.snap.loadedAt) < snapshotTTL && s.snap.weights != nil {
		return s.snap
	}

	weights, err := s.store.Weights(domain.ScoreEpisode)
	if err != nil || len(weights) == 0 {
		weights = defaultWeights
	} else {
		for k, v := range defaultWeights {
			if _, ok := weights[k]; !ok {
				weights[k] = v
			}
		}
	}
	modifiers, err := s.store.ProviderModifiers()
	if err != nil {
		modifiers = map[string]int{}
	}

	s.snap = snapshot{weights: weights, modifiers: modifiers, loadedAt: time.Now()}
	return s.snap
}

// ProviderModifiers exposes the current snapshot's per-provider priority
// modifiers, used by the Manager's tie-break sort.
func (s *Scorer) ProviderModifiers() map[string]int {
	return s.current().modifiers
}

// ScoreAll assigns Score to every result in place.
func (s *Scorer) ScoreAll(results []domain.SubtitleResult, query domain.VideoQuery) {
	snap := s.current()
	for i := range results {
		results[i].Score = s.score(results[i], query, snap)
	}
}

func (s *Scorer) score(r domain.SubtitleResult, query domain.VideoQuery, snap snapshot) float64 {
	score := 0.0

	switch r.Format {
	case domain.FormatASS:
		score += snap.weights["format_ass"]
	case domain.FormatSRT:
		score += snap.weights["format_srt"]
	}

	if r.Forced == query.ForcedOnly {
		score += snap.weights["forced_match"]
	}

	if r.MTConfidence >= int(snap.weights["mt_threshold"]) {
		score += snap.weights["mt_penalty"]
	}

	score += float64(r.UploaderTrust) * snap.weights["uploader_trust"]

	if modifier, ok := snap.modifiers[r.ProviderName]; ok {
		score += float64(modifier)
	}

	return score
}
