package translation

import (
	"context"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/sublarrerr"
)

const (
	defaultSimilarityThreshold = 0.9
	defaultQualityThreshold    = 50
	defaultMaxRetries          = 2
	defaultBatchSize           = 20
)

// Options configures one TranslateBatch call.
type Options struct {
	SourceLang          string
	TargetLang          string
	Glossary            []domain.GlossaryEntry
	SRTReference         []string
	BatchSize           int
	SimilarityThreshold float64 // translation-memory hit threshold S, default 0.9
	SelfEvaluate        bool
	QualityThreshold    int // default 50
	MaxRetries          int // default 2
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = defaultSimilarityThreshold
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = defaultQualityThreshold
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	return o
}

// Result is everything TranslateBatch produces for one subtitle's worth of
// lines: the merged translated output (memory hits plus fresh translations,
// back in original order) and the quality stats to persist alongside it.
type Result struct {
	Lines []Line
	Stats QualityStats
}

// Manager is the fallback-chain translator (§4.4): it tries backends in
// configured order, skipping one whose circuit breaker is open, and only
// surfaces a TranslationError once every backend has been exhausted (§7).
type Manager struct {
	backends []Backend
	breakers map[string]*gobreaker.CircuitBreaker[[]Line]
	memory   MemoryStore
	log      zerolog.Logger
}

func NewManager(backends []Backend, memory MemoryStore, log zerolog.Logger) *Manager {
	breakers := make(map[string]*gobreaker.CircuitBreaker[[]Line], len(backends))
	for _, b := range backends {
		breakers[b.Name()] = newLineBreaker(b.Name(), log)
	}
	return &Manager{
		backends: backends,
		breakers: breakers,
		memory:   memory,
		log:      log.With().Str("component", "translation_manager").Logger(),
	}
}

// TranslateBatch translates every line in lines, applying translation
// memory first, batching the remainder, and — if enabled — self-evaluating
// and retrying low-scoring lines (§4.4, S6).
func (m *Manager) TranslateBatch(ctx context.Context, lines []Line, opts Options) (Result, error) {
	opts = opts.withDefaults()

	translated := make([]Line, len(lines))
	normalizedByID := make(map[int]string, len(lines))
	var pending []Line

	for i, l := range lines {
		normalized := NormalizeSource(l.Text)
		normalizedByID[l.ID] = normalized
		if cached, ok := lookupMemory(m.memory, opts.SourceLang, opts.TargetLang, normalized, opts.SimilarityThreshold); ok {
			translated[i] = Line{ID: l.ID, Text: cached}
			continue
		}
		pending = append(pending, l)
	}

	bestScores := make(map[int]int)

	batches := batchLines(pending, opts.BatchSize)
	totalLines := len(pending)
	offset := 0
	for _, batch := range batches {
		result, err := m.translateOneBatch(ctx, batch, offset, totalLines, opts)
		if err != nil {
			return Result{}, err
		}
		offset += len(batch)

		if opts.SelfEvaluate && len(m.backends) > 0 {
			result, bestScores = m.retryLowQuality(ctx, batch, result, opts, bestScores)
		}

		byID := make(map[int]Line, len(result))
		for _, l := range result {
			byID[l.ID] = l
		}
		for i, src := range lines {
			if out, ok := byID[src.ID]; ok {
				translated[i] = out
				storeMemory(m.memory, opts.SourceLang, opts.TargetLang, normalizedByID[src.ID], out.Text)
			}
		}
	}

	stats := aggregateQuality(bestScores, opts.QualityThreshold)
	return Result{Lines: translated, Stats: stats}, nil
}

// translateOneBatch tries each backend in order until one succeeds, per the
// fallback-chain rule in §4.6/§7: a backend's TranslationError just advances
// to the next configured backend.
func (m *Manager) translateOneBatch(ctx context.Context, batch []Line, offset, total int, opts Options) ([]Line, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var lastErr error
	for _, backend := range m.backends {
		breaker := m.breakers[backend.Name()]

		glossary := opts.Glossary
		if !backend.Capabilities().SupportsGlossary {
			glossary = nil
		}
		reference := opts.SRTReference
		if !backend.Capabilities().SupportsSRTReference {
			reference = nil
		} else {
			reference = SelectReferenceWindow(opts.SRTReference, offset, offset+len(batch), total)
		}

		prompt := BuildPrompt(opts.SourceLang, opts.TargetLang, len(batch), glossary, reference)

		result, err := breaker.Execute(func() ([]Line, error) {
			return backend.SendBatch(ctx, batch, prompt)
		})
		if err != nil {
			lastErr = &sublarrerr.TranslationError{Backend: backend.Name(), Code: sublarrerr.BackendUnavailable, Message: err.Error()}
			m.log.Warn().Err(err).Str("backend", backend.Name()).Msg("translation backend failed, advancing fallback chain")
			continue
		}
		if len(result) != len(batch) {
			lastErr = &sublarrerr.TranslationError{Backend: backend.Name(), Code: sublarrerr.LineCountMismatch, Message: "returned line count did not match input"}
			m.log.Warn().Str("backend", backend.Name()).Msg("translation backend returned mismatched line count, advancing fallback chain")
			continue
		}
		return result, nil
	}

	if lastErr == nil {
		lastErr = &sublarrerr.TranslationError{Backend: "none", Code: sublarrerr.BackendUnavailable, Message: "no translation backends configured"}
	}
	return nil, lastErr
}

// retryLowQuality implements S6: lines scoring below threshold are
// re-translated up to MaxRetries times, keeping the best-scoring version of
// each across all attempts.
func (m *Manager) retryLowQuality(ctx context.Context, source, translated []Line, opts Options, bestScores map[int]int) ([]Line, map[int]int) {
	evalBackend := m.backends[0]
	scores := evaluateBatch(ctx, evalBackend, opts.SourceLang, opts.TargetLang, source, translated)

	best := make([]Line, len(translated))
	copy(best, translated)
	for _, l := range best {
		bestScores[l.ID] = scores[l.ID]
	}

	sourceByID := make(map[int]Line, len(source))
	for _, l := range source {
		sourceByID[l.ID] = l
	}

	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		var retryBatch []Line
		for _, l := range best {
			if bestScores[l.ID] < opts.QualityThreshold {
				retryBatch = append(retryBatch, sourceByID[l.ID])
			}
		}
		if len(retryBatch) == 0 {
			break
		}

		retried, err := m.translateOneBatch(ctx, retryBatch, 0, len(source), opts)
		if err != nil {
			break
		}
		retryScores := evaluateBatch(ctx, evalBackend, opts.SourceLang, opts.TargetLang, retryBatch, retried)

		byID := make(map[int]Line, len(retried))
		for _, l := range retried {
			byID[l.ID] = l
		}
		for id, newScore := range retryScores {
			if newScore > bestScores[id] {
				bestScores[id] = newScore
				for i, l := range best {
					if l.ID == id {
						best[i] = byID[id]
					}
				}
			}
		}
	}

	return best, bestScores
}

func batchLines(lines []Line, size int) [][]Line {
	if size <= 0 || len(lines) == 0 {
		if len(lines) == 0 {
			return nil
		}
		size = len(lines)
	}
	var batches [][]Line
	for i := 0; i < len(lines); i += size {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[i:end])
	}
	return batches
}
