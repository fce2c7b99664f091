package appctx

import (
	"context"
	"fmt"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/integrations"
	"github.com/Abrechen2/sublarr/internal/scheduler"
)

const batchDrainSize = 20

// registerHandlers binds every domain.JobKind to the scheduler before
// anything can be submitted.
func (a *App) registerHandlers() {
	a.Scheduler.Register(domain.JobTranslate, a.handleTranslate)
	a.Scheduler.Register(domain.JobProviderSearch, a.handleProviderSearch)
	a.Scheduler.Register(domain.JobTranscribe, a.handleTranscribe)
	a.Scheduler.Register(domain.JobSync, a.handleSync)
	a.Scheduler.Register(domain.JobWantedScan, a.handleWantedScan)
	a.Scheduler.Register(domain.JobBatch, a.handleBatch)
}

// scheduleRecurringJobs registers the periodic services §4.8 describes:
// the wanted scan, the *arr inventory sync, a bounded drain of the pending
// queue (also where Case B's upgrade window gets re-checked), and cache
// maintenance. Each submits through the scheduler so its run shows up in
// the jobs table, except cache purge, which touches no WantedItem/job kind
// and runs as a plain supervised tick instead.
func (a *App) scheduleRecurringJobs() {
	cfg := a.Config

	a.Scheduler.AddScheduledJob("wanted_scan", cfg.WantedScanInterval, func(ctx context.Context) {
		if _, err := a.Scheduler.Submit(ctx, scheduler.Request{Kind: domain.JobWantedScan}); err != nil {
			a.Log.Error().Err(err).Msg("submit wanted_scan failed")
		}
	})

	a.Scheduler.AddScheduledJob("arr_sync", cfg.WantedScanInterval, func(ctx context.Context) {
		if _, err := a.Scheduler.Submit(ctx, scheduler.Request{Kind: domain.JobSync}); err != nil {
			a.Log.Error().Err(err).Msg("submit sync failed")
		}
	})

	a.Scheduler.AddScheduledJob("upgrade_scan", cfg.UpgradeScanInterval, func(ctx context.Context) {
		if _, err := a.Scheduler.Submit(ctx, scheduler.Request{Kind: domain.JobBatch}); err != nil {
			a.Log.Error().Err(err).Msg("submit batch drain failed")
		}
	})

	a.Scheduler.AddScheduledJob("cache_purge", cfg.CachePurgeInterval, func(ctx context.Context) {
		n, err := a.Store.ProviderCache().PurgeExpired()
		if err != nil {
			a.Log.Error().Err(err).Msg("provider cache purge failed")
			return
		}
		a.Log.Debug().Int64("purged", n).Msg("provider cache purge complete")
	})
}

// resolveItemContext loads the WantedItem, its owning scan target and the
// language profile governing it, for any handler that needs to run the
// acquisition pipeline against one item.
func (a *App) resolveItemContext(key domain.WantedItemKey) (domain.WantedItem, domain.LanguageProfile, domain.VideoQuery, error) {
	item, err := a.Store.Wanted().GetByKey(key)
	if err != nil {
		return domain.WantedItem{}, domain.LanguageProfile{}, domain.VideoQuery{}, fmt.Errorf("resolve wanted item: %w", err)
	}

	target, err := a.Store.Inventory().GetScanTargetByPath(item.FilePath)
	if err != nil {
		return domain.WantedItem{}, domain.LanguageProfile{}, domain.VideoQuery{}, fmt.Errorf("resolve scan target: %w", err)
	}

	profile, err := a.resolveProfile(target.ProfileID)
	if err != nil {
		return domain.WantedItem{}, domain.LanguageProfile{}, domain.VideoQuery{}, fmt.Errorf("resolve language profile: %w", err)
	}

	query := domain.VideoQuery{
		Title:          target.Title,
		Season:         target.Season,
		Episode:        target.Episode,
		IsEpisode:      target.IsEpisode,
		SourceLanguage: profile.SourceLanguage,
		TargetLanguage: item.TargetLanguage,
		ForcedOnly:     item.SubtitleType == domain.SubtitleForced,
	}
	return item, profile, query, nil
}

func (a *App) resolveProfile(profileID int64) (domain.LanguageProfile, error) {
	if profileID != 0 {
		if p, err := a.Store.Inventory().ProfileByID(profileID); err == nil {
			return p, nil
		}
	}
	return a.Store.Inventory().DefaultProfile()
}

// processItem runs the pipeline against one WantedItem and persists its
// terminal (or non-terminal-but-stable) outcome, claiming the item first so
// two handlers never race on the same row (§5).
func (a *App) processItem(ctx context.Context, key domain.WantedItemKey) (map[string]any, error) {
	item, profile, query, err := a.resolveItemContext(key)
	if err != nil {
		return nil, err
	}

	claimed, err := a.Store.Wanted().Claim(item.ID, domain.StatusPending, domain.StatusSearching)
	if err != nil {
		return nil, fmt.Errorf("claim wanted item: %w", err)
	}
	if !claimed {
		return map[string]any{"skipped": "already claimed or not pending"}, nil
	}

	outcome, err := a.Pipeline.Process(ctx, item, profile, query, a.Config.Acquisition)
	if err != nil {
		_ = a.Store.Wanted().Fail(item.ID, domain.FailureDatabase, err.Error())
		return nil, err
	}

	switch outcome.Status {
	case domain.StatusCompleted:
		if err := a.Store.Wanted().Complete(item.ID, outcome.ResultPath, outcome.ResultHash); err != nil {
			a.Log.Error().Err(err).Int64("item_id", item.ID).Msg("failed to persist completed wanted item")
		}
	case domain.StatusTranscribing:
		if _, err := a.Store.Wanted().Claim(item.ID, domain.StatusSearching, domain.StatusTranscribing); err != nil {
			a.Log.Error().Err(err).Int64("item_id", item.ID).Msg("failed to mark wanted item transcribing")
		}
	default:
		if err := a.Store.Wanted().Fail(item.ID, outcome.FailureReason, outcome.Message); err != nil {
			a.Log.Error().Err(err).Int64("item_id", item.ID).Msg("failed to persist failed wanted item")
		}
	}

	return map[string]any{
		"status":      string(outcome.Status),
		"message":     outcome.Message,
		"result_path": outcome.ResultPath,
		"upgraded":    outcome.Upgraded,
	}, nil
}

// handleTranslate runs the full Case A-D pipeline for one WantedItem. It
// backs both a direct JobTranslate submission and the auto-extract path
// out of the scanner, since Pipeline.Process has no partial mode to fork
// extraction from translation.
func (a *App) handleTranslate(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	progress("acquire", 0, "resolving wanted item")
	key := domain.WantedItemKey{FilePath: job.FilePath, TargetLanguage: job.TargetLanguage, SubtitleType: job.SubtitleType}
	return a.processItem(ctx, key)
}

// handleProviderSearch previews provider results for one WantedItem
// without downloading or translating anything — a read-only look at what
// the Provider Manager would return, useful for a CLI/API "show candidates"
// operation distinct from actually acquiring the subtitle.
func (a *App) handleProviderSearch(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	key := domain.WantedItemKey{FilePath: job.FilePath, TargetLanguage: job.TargetLanguage, SubtitleType: job.SubtitleType}
	_, profile, query, err := a.resolveItemContext(key)
	if err != nil {
		return nil, err
	}
	query.TargetLanguage = profile.SourceLanguage
	query.ForcedOnly = job.SubtitleType == domain.SubtitleForced

	progress("search", 0.5, "querying providers")
	results, err := a.Providers.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("provider search: %w", err)
	}

	top := results
	if len(top) > 5 {
		top = top[:5]
	}
	names := make([]string, len(top))
	for i, r := range top {
		names[i] = fmt.Sprintf("%s/%s (%.1f)", r.ProviderName, r.Format, r.Score)
	}
	return map[string]any{"result_count": len(results), "top_results": names}, nil
}

// handleTranscribe is the not-yet-implemented Whisper transcription stub:
// the media toolkit has no local transcription method, so this just
// records that the item is waiting on a capability the engine doesn't
// have yet rather than failing it outright.
func (a *App) handleTranscribe(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	a.Log.Warn().Str("file_path", job.FilePath).Msg("transcription requested but no local transcription backend is configured")
	return map[string]any{"status": "transcription_unavailable"}, nil
}

// handleSync pulls every configured *arr instance's inventory into the
// local cache (§4.9's read side). One job covers all instances; a single
// instance's failure is logged and doesn't stop the rest from syncing.
func (a *App) handleSync(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	synced, failed := 0, 0
	for i, client := range a.ArrClients {
		progress("sync", float64(i)/float64(len(a.ArrClients)+1), "syncing instance")
		if err := integrations.SyncInstance(ctx, client, a.Store.Inventory()); err != nil {
			a.Log.Error().Err(err).Msg("arr instance sync failed")
			failed++
			continue
		}
		synced++
	}
	return map[string]any{"synced": synced, "failed": failed}, nil
}

// handleWantedScan runs one incremental Wanted Scanner cycle; the scanner
// itself decides to promote to a full scan every Kth automatic cycle.
func (a *App) handleWantedScan(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	stats, err := a.Scanner.Run(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("wanted scan: %w", err)
	}
	return map[string]any{
		"full":            stats.Full,
		"files_probed":    stats.FilesProbed,
		"items_created":   stats.ItemsCreated,
		"items_unchanged": stats.ItemsUnchanged,
		"stale_deleted":   stats.StaleDeleted,
	}, nil
}

// handleBatch drains up to batchDrainSize pending WantedItems through the
// pipeline in one job, the periodic backstop for items the scanner's
// auto-extract path didn't pick up (auto-extract disabled, or an item
// created while the feature was off) and for Case B's time-windowed
// upgrade retry.
func (a *App) handleBatch(ctx context.Context, job domain.Job, progress scheduler.ProgressFunc) (map[string]any, error) {
	pending, err := a.Store.Wanted().ListPending(batchDrainSize)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	completed, failed, transcribing := 0, 0, 0
	for i, item := range pending {
		progress("batch", float64(i)/float64(len(pending)+1), item.FilePath)
		key := domain.WantedItemKey{FilePath: item.FilePath, TargetLanguage: item.TargetLanguage, SubtitleType: item.SubtitleType}
		result, err := a.processItem(ctx, key)
		if err != nil {
			a.Log.Warn().Err(err).Str("file_path", item.FilePath).Msg("batch item failed")
			failed++
			continue
		}
		switch result["status"] {
		case string(domain.StatusCompleted):
			completed++
		case string(domain.StatusTranscribing):
			transcribing++
		default:
			failed++
		}
	}

	return map[string]any{
		"attempted":    len(pending),
		"completed":    completed,
		"failed":       failed,
		"transcribing": transcribing,
	}, nil
}
