// Package scanner is the Wanted Scanner (C7): it walks the local inventory
// cache, probes each file for embedded subtitle streams, and upserts a
// WantedItem per (file, target_language) pair the configured profile calls
// for — the thing that actually populates the queue C8's workers and C6's
// pipeline drain.
package scanner

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/eventbus"
	"github.com/Abrechen2/sublarr/internal/media"
	"github.com/Abrechen2/sublarr/internal/subtitle"
)

// fullScanEveryNCycles forces a full scan every Kth cycle regardless of
// mode, per §4.7 (default 6).
const fullScanEveryNCycles = 6

const lastScanTimestampKey = "_last_scan_timestamp"
const scanCycleCountKey = "_scan_cycle_count"

// progressInterval bounds how often EmitProgress fires during one scan.
const progressInterval = time.Second

// InventorySource is the subset of *store.InventoryRepo the scanner needs.
type InventorySource interface {
	ListScanTargets() ([]domain.ScanTarget, error)
	ListAllVideoPaths() (map[string]bool, error)
	ProfileByID(id int64) (domain.LanguageProfile, error)
	DefaultProfile() (domain.LanguageProfile, error)
}

// WantedSink is the subset of *store.WantedRepo the scanner needs.
type WantedSink interface {
	Upsert(item domain.WantedItem) (bool, error)
	DeleteMissing(knownPaths map[string]bool) (int64, error)
}

// ConfigSource is the subset of *store.ConfigRepo the scanner needs to
// track the incremental watermark and full-scan cycle counter.
type ConfigSource interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// ExtractEnqueuer receives a newly-discovered wanted item for immediate
// extraction/translation when auto-extract-on-scan is enabled. Forward-
// declared so the scanner doesn't import the scheduler package directly.
type ExtractEnqueuer interface {
	EnqueueExtract(ctx context.Context, item domain.WantedItem, autoTranslate bool) error
}

// Options configures one Scanner.
type Options struct {
	Concurrency         int  // bounded probe pool size, default 4
	AutoExtractOnScan   bool // §4.7: enqueue extraction for newly-created items
	AutoTranslateOnScan bool
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Scanner drives one inventory scan cycle, incremental or full.
type Scanner struct {
	Inventory InventorySource
	Wanted    WantedSink
	Config    ConfigSource
	Media     *media.Toolkit
	Bus       *eventbus.Bus
	Enqueuer  ExtractEnqueuer
	Log       zerolog.Logger
	Opts      Options

	// StatFile overrides os.Stat-backed existence checks in tests.
	StatFile func(path string) bool
}

// Stats summarizes one completed scan.
type Stats struct {
	Full           bool
	FilesProbed    int
	ItemsCreated   int
	ItemsUnchanged int
	StaleDeleted   int64
}

func statExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Run executes one scan cycle. requestedFull forces full mode (an on-demand
// or manually triggered scan); otherwise the scanner decides incremental vs
// full from the persisted cycle counter (every fullScanEveryNCycles-th
// automatic cycle is promoted to full, per §4.7).
func (s *Scanner) Run(ctx context.Context, requestedFull bool) (Stats, error) {
	opts := s.Opts.withDefaults()
	statFn := s.StatFile
	if statFn == nil {
		statFn = statExists
	}

	full := requestedFull || s.dueForFullCycle()
	s.Bus.Emit(eventbus.EventScanStarted, map[string]any{"full": full})

	targets, err := s.Inventory.ListScanTargets()
	if err != nil {
		return Stats{}, err
	}

	watermark := s.loadWatermark()
	if !full {
		filtered := targets[:0]
		for _, t := range targets {
			if t.LastSeenTS.After(watermark) {
				filtered = append(filtered, t)
			}
		}
		targets = filtered
	}

	stats := Stats{Full: full}
	var lastEmit time.Time
	var emitMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	type probeResult struct {
		created   int
		unchanged int
	}
	results := make(chan probeResult, len(targets))

	for _, target := range targets {
		target := target
		g.Go(func() error {
			created, unchanged := s.probeOne(gctx, target, statFn, opts)
			results <- probeResult{created: created, unchanged: unchanged}

			emitMu.Lock()
			due := time.Since(lastEmit) >= progressInterval
			if due {
				lastEmit = time.Now()
			}
			emitMu.Unlock()
			if due {
				s.Bus.EmitProgress(map[string]any{
					"event": "wanted_scan_progress",
					"full":  full,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for r := range results {
		stats.FilesProbed++
		stats.ItemsCreated += r.created
		stats.ItemsUnchanged += r.unchanged
	}

	if full {
		knownPaths, err := s.Inventory.ListAllVideoPaths()
		if err == nil {
			deleted, err := s.Wanted.DeleteMissing(knownPaths)
			if err == nil {
				stats.StaleDeleted = deleted
			}
		}
	}

	s.saveWatermark(time.Now())
	s.bumpCycleCount()

	s.Bus.Emit(eventbus.EventScanCompleted, map[string]any{
		"full":          stats.Full,
		"files_probed":  stats.FilesProbed,
		"items_created": stats.ItemsCreated,
		"stale_deleted": stats.StaleDeleted,
	})
	return stats, nil
}

// probeOne resolves one file's target-language list from its profile,
// probes embedded subtitle streams (purely informational today — the
// acquisition pipeline re-probes at acquisition time since embedded
// streams can be extracted lazily), and upserts the wanted items §4.7
// calls for.
func (s *Scanner) probeOne(ctx context.Context, target domain.ScanTarget, statFn func(string) bool, opts Options) (created, unchanged int) {
	profile, err := s.resolveProfile(target.ProfileID)
	if err != nil {
		s.Log.Warn().Err(err).Str("file", target.FilePath).Msg("no profile resolved, skipping")
		return 0, 0
	}

	// Informational probe so a bad/missing video doesn't silently swallow
	// the rest of the batch; failures here don't block wanted-item creation.
	if _, err := s.Media.Analyze(target.FilePath); err != nil {
		s.Log.Debug().Err(err).Str("file", target.FilePath).Msg("probe failed, continuing by filename alone")
	}

	for _, lang := range profile.TargetLanguages {
		full := subtitle.DetectExisting(target.FilePath, lang, domain.SubtitleFull, statFn)
		if full == domain.ExistingExternalASS {
			unchanged++
		} else {
			item := domain.WantedItem{
				FilePath:       target.FilePath,
				TargetLanguage: lang,
				SubtitleType:   domain.SubtitleFull,
				ExistingSub:    full,
			}
			wasCreated, err := s.Wanted.Upsert(item)
			if err != nil {
				s.Log.Error().Err(err).Str("file", target.FilePath).Msg("wanted item upsert failed")
				continue
			}
			if wasCreated {
				created++
				s.Bus.Emit(eventbus.EventWantedItemCreated, map[string]any{"file_path": target.FilePath, "target_language": lang})
				s.maybeAutoExtract(ctx, item, opts)
			} else {
				unchanged++
			}
		}

		if profile.ForcedPreference == domain.ForcedSeparate {
			forced := subtitle.DetectExisting(target.FilePath, lang, domain.SubtitleForced, statFn)
			if forced == domain.ExistingNone {
				item := domain.WantedItem{
					FilePath:       target.FilePath,
					TargetLanguage: lang,
					SubtitleType:   domain.SubtitleForced,
					ExistingSub:    forced,
				}
				wasCreated, err := s.Wanted.Upsert(item)
				if err != nil {
					s.Log.Error().Err(err).Str("file", target.FilePath).Msg("forced wanted item upsert failed")
					continue
				}
				if wasCreated {
					created++
					s.Bus.Emit(eventbus.EventWantedItemCreated, map[string]any{"file_path": target.FilePath, "target_language": lang, "forced": true})
					s.maybeAutoExtract(ctx, item, opts)
				} else {
					unchanged++
				}
			} else {
				unchanged++
			}
		}
	}
	return created, unchanged
}

func (s *Scanner) maybeAutoExtract(ctx context.Context, item domain.WantedItem, opts Options) {
	if !opts.AutoExtractOnScan || s.Enqueuer == nil {
		return
	}
	if err := s.Enqueuer.EnqueueExtract(ctx, item, opts.AutoTranslateOnScan); err != nil {
		s.Log.Warn().Err(err).Str("file", item.FilePath).Msg("auto-extract enqueue failed")
	}
}

func (s *Scanner) resolveProfile(profileID int64) (domain.LanguageProfile, error) {
	if profileID != 0 {
		if p, err := s.Inventory.ProfileByID(profileID); err == nil {
			return p, nil
		}
	}
	return s.Inventory.DefaultProfile()
}

func (s *Scanner) loadWatermark() time.Time {
	raw, ok, err := s.Config.Get(lastScanTimestampKey)
	if err != nil || !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Scanner) saveWatermark(t time.Time) {
	_ = s.Config.Set(lastScanTimestampKey, t.Format(time.RFC3339))
}

// dueForFullCycle reports whether the persisted automatic-cycle counter has
// reached the Kth cycle (default 6) that §4.7 promotes to a full scan.
func (s *Scanner) dueForFullCycle() bool {
	raw, ok, err := s.Config.Get(scanCycleCountKey)
	if err != nil || !ok {
		return false
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	return count > 0 && count%fullScanEveryNCycles == 0
}

func (s *Scanner) bumpCycleCount() {
	raw, ok, err := s.Config.Get(scanCycleCountKey)
	count := 0
	if err == nil && ok {
		count, _ = strconv.Atoi(raw)
	}
	count++
	_ = s.Config.Set(scanCycleCountKey, strconv.Itoa(count))
}
