// Package acquisition is the per-item orchestrator (C6): given one
// WantedItem, it decides which of Cases A-D applies, drives the provider
// search / embedded-extraction / translation steps to produce the target
// subtitle, and writes the result atomically. It depends only on the
// interfaces it needs from the provider, translation, media and subtitle
// packages, so it never imports the inventory/media-server integration
// package directly — callers hand it a ready-made VideoQuery
// and, after success, a MediaRefresher to notify.
package acquisition

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/media"
	"github.com/Abrechen2/sublarr/internal/subtitle"
	"github.com/Abrechen2/sublarr/internal/sublarrerr"
	"github.com/Abrechen2/sublarr/internal/translation"
)

// ProviderSearcher is the subset of *providers.Manager the pipeline needs.
type ProviderSearcher interface {
	Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error)
}

// Downloader fetches the raw bytes of a chosen SubtitleResult. Implemented
// by every providers.Provider; the pipeline downloads through the specific
// provider that produced the winning result rather than through the
// manager, since only the provider knows how to fetch its own URL scheme.
type Downloader interface {
	Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error)
}

// MediaRefresher notifies the upstream media server(s) that a file changed.
// Forward-declared here so C9 has a seam to attach to; nil is valid and
// simply skips the notification.
type MediaRefresher interface {
	Refresh(ctx context.Context, videoPath string) error
}

// Config is the per-profile policy the pipeline decides against.
type Config struct {
	UpgradeWindow       time.Duration `json:"upgrade_window" mapstructure:"upgrade_window"`             // B: only attempt upgrade within this long of file creation
	KeepSRTAfterUpgrade bool          `json:"keep_srt_after_upgrade" mapstructure:"keep_srt_after_upgrade"` // O1: whether B1 deletes the old SRT
	WhisperEnabled      bool          `json:"whisper_enabled" mapstructure:"whisper_enabled"`
	WhisperScoreFloor   float64       `json:"whisper_score_floor" mapstructure:"whisper_score_floor"`
	SimilarityThreshold float64       `json:"similarity_threshold" mapstructure:"similarity_threshold"`
	QualityThreshold    int           `json:"quality_threshold" mapstructure:"quality_threshold"`
	MaxRetries          int           `json:"max_retries" mapstructure:"max_retries"`
	BatchSize           int           `json:"batch_size" mapstructure:"batch_size"`
}

func (c Config) withDefaults() Config {
	if c.UpgradeWindow <= 0 {
		c.UpgradeWindow = 7 * 24 * time.Hour
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.9
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 50
	}
	if c.WhisperScoreFloor <= 0 {
		c.WhisperScoreFloor = 100
	}
	return c
}

// Pipeline wires the Provider Manager, Translation Manager and media
// toolkit together to resolve one WantedItem at a time.
type Pipeline struct {
	Providers  ProviderSearcher
	Downloader func(providerName string) Downloader // resolves the provider that produced a result
	Translator *translation.Manager
	Media      *media.Toolkit
	Refresher  MediaRefresher
	Log        zerolog.Logger

	// Glossary resolves the fixed-substitution entries for a scope (see
	// domain.ScopeGlobal); nil skips both prompt injection and the
	// post-translation glossary check. Wired to store.GlossaryRepo.ForScope.
	Glossary func(scope string) ([]domain.GlossaryEntry, error)

	// StatFile reports whether path exists; overridable in tests.
	StatFile func(path string) bool
}

// Outcome is the result of processing one WantedItem.
type Outcome struct {
	Status        domain.WantedStatus
	FailureReason domain.FailureReason
	Message       string
	ResultPath    string
	ResultHash    string
	Upgraded      bool
	Stats         translation.QualityStats
}

func statExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Process runs the full Case A-D decision tree for one WantedItem and
// returns its terminal outcome. It never returns an error for a provider
// or translation-backend failure — those are absorbed into a failed
// Outcome per §7's failure semantics. Every path returns a nil error; the
// result of the run is carried entirely in the Outcome.
func (p *Pipeline) Process(ctx context.Context, item domain.WantedItem, profile domain.LanguageProfile, query domain.VideoQuery, cfg Config) (Outcome, error) {
	cfg = cfg.withDefaults()
	statFn := p.StatFile
	if statFn == nil {
		statFn = statExists
	}

	if item.SubtitleType == domain.SubtitleForced {
		return p.processForced(ctx, item, query, statFn)
	}

	existing := subtitle.DetectExisting(item.FilePath, item.TargetLanguage, item.SubtitleType, statFn)

	switch existing {
	case domain.ExistingExternalASS:
		return Outcome{Status: domain.StatusCompleted, Message: "skip: present"}, nil
	case domain.ExistingExternalSRT:
		return p.processUpgrade(ctx, item, profile, query, cfg, statFn)
	default:
		return p.processAcquire(ctx, item, profile, query, cfg, statFn)
	}
}

// processForced handles subtitle_type=forced: prefer an embedded forced
// track already in the container, else provider search with
// forced_only=true; download-only, never translated (§4.6). A downloaded
// candidate is reclassified against its actual content before being
// written, since the provider-side filter in providers.Manager.Search only
// sees metadata (§4.3 step 4, §4.5, P9).
func (p *Pipeline) processForced(ctx context.Context, item domain.WantedItem, query domain.VideoQuery, statFn func(string) bool) (Outcome, error) {
	outPath := subtitle.OutputPath(item.FilePath, item.TargetLanguage, domain.SubtitleForced, domain.FormatASS)
	if statFn(outPath) {
		return Outcome{Status: domain.StatusCompleted, Message: "skip: present"}, nil
	}

	if body, format, ok := p.extractEmbeddedForced(item); ok {
		outPath = subtitle.OutputPath(item.FilePath, item.TargetLanguage, domain.SubtitleForced, format)
		if err := writeAtomic(outPath, body); err != nil {
			return p.failed(domain.FailureFilesystem, err.Error()), nil
		}
		p.refresh(ctx, item.FilePath)
		return Outcome{Status: domain.StatusCompleted, ResultPath: outPath}, nil
	}

	query.ForcedOnly = true
	query.TargetLanguage = item.TargetLanguage
	results, err := p.Providers.Search(ctx, query)
	if err != nil {
		return p.failed(domain.FailureNoTarget, fmt.Sprintf("forced provider search: %v", err)), nil
	}
	if len(results) == 0 {
		return p.failed(domain.FailureNoTarget, "no forced subtitle found"), nil
	}

	best := results[0]
	body, err := p.downloadResult(ctx, best)
	if err != nil {
		return p.failed(domain.FailureNoTarget, fmt.Sprintf("forced download: %v", err)), nil
	}

	if parsed, parseErr := subtitle.ParseBytes(body, best.Format); parseErr == nil {
		if forced, _ := subtitle.ClassifyResultForced(best, parsed.Lines); !forced {
			return p.failed(domain.FailureNoTarget, "downloaded subtitle did not reclassify as forced"), nil
		}
	}

	outPath = subtitle.OutputPath(item.FilePath, item.TargetLanguage, domain.SubtitleForced, best.Format)
	if err := writeAtomic(outPath, body); err != nil {
		return p.failed(domain.FailureFilesystem, err.Error()), nil
	}
	p.refresh(ctx, item.FilePath)

	return Outcome{Status: domain.StatusCompleted, ResultPath: outPath, ResultHash: best.Hash}, nil
}

// extractEmbeddedForced looks for a container subtitle track the
// multi-signal classifier agrees is forced, in item.TargetLanguage, and
// extracts it. This is the one real consumer of media.Track.Forced (parsed
// from ffprobe's disposition.forced) alongside the track's stream title.
func (p *Pipeline) extractEmbeddedForced(item domain.WantedItem) (body []byte, format domain.SubtitleFormat, ok bool) {
	info, err := p.Media.Analyze(item.FilePath)
	if err != nil {
		return nil, "", false
	}

	for _, t := range info.SubtitleTracks() {
		if t.Language != "" && item.TargetLanguage != "" && t.Language != item.TargetLanguage {
			continue
		}
		forced, _ := subtitle.ForcedClassifier.Classify(subtitle.TrackForcedSignals(t.Forced, t.Name, nil))
		if !forced {
			continue
		}

		trackFormat := domain.FormatASS
		if t.Codec == "subrip" || t.Codec == "srt" {
			trackFormat = domain.FormatSRT
		}

		tmp, tmpErr := os.CreateTemp("", "sublarr-forced-*."+string(trackFormat))
		if tmpErr != nil {
			continue
		}
		tmpPath := tmp.Name()
		tmp.Close()

		if extractErr := p.Media.ExtractTrack(item.FilePath, t.ID, tmpPath); extractErr != nil {
			p.Log.Warn().Err(extractErr).Str("file", item.FilePath).Msg("embedded forced track extraction failed")
			os.Remove(tmpPath)
			continue
		}
		data, readErr := os.ReadFile(tmpPath)
		os.Remove(tmpPath)
		if readErr != nil {
			continue
		}
		return data, trackFormat, true
	}
	return nil, "", false
}

// processUpgrade handles Case B: a target SRT already exists; try to
// upgrade it to ASS within the configured window.
func (p *Pipeline) processUpgrade(ctx context.Context, item domain.WantedItem, profile domain.LanguageProfile, query domain.VideoQuery, cfg Config, statFn func(string) bool) (Outcome, error) {
	if time.Since(item.CreatedTS) > cfg.UpgradeWindow {
		return Outcome{Status: domain.StatusCompleted, Message: "no upgrade path"}, nil
	}

	// B1: provider search for target-language ASS.
	assQuery := query
	assQuery.TargetLanguage = item.TargetLanguage
	results, err := p.Providers.Search(ctx, assQuery)
	if err == nil {
		for _, r := range results {
			if r.Format != domain.FormatASS {
				continue
			}
			body, dlErr := p.downloadResult(ctx, r)
			if dlErr != nil {
				continue
			}
			outPath := subtitle.OutputPath(item.FilePath, item.TargetLanguage, domain.SubtitleFull, domain.FormatASS)
			if err := writeAtomic(outPath, body); err != nil {
				return p.failed(domain.FailureFilesystem, err.Error()), nil
			}
			if !cfg.KeepSRTAfterUpgrade {
				srtPath := subtitle.OutputPath(item.FilePath, item.TargetLanguage, domain.SubtitleFull, domain.FormatSRT)
				_ = os.Remove(srtPath)
			}
			p.refresh(ctx, item.FilePath)
			return Outcome{Status: domain.StatusCompleted, ResultPath: outPath, ResultHash: r.Hash, Upgraded: true}, nil
		}
	}

	// B2: embedded source-language ASS, translated to target ASS.
	if info, probeErr := p.Media.Analyze(item.FilePath); probeErr == nil {
		if track, ok := findEmbeddedSubtitle(info, profile.SourceLanguage, "ass"); ok {
			outcome, translated := p.translateEmbeddedTrack(ctx, item, profile, cfg, info, track, domain.FormatASS)
			if translated {
				outcome.Upgraded = true
				return outcome, nil
			}
		}
	}

	// B3: keep the SRT.
	return Outcome{Status: domain.StatusCompleted, Message: "no upgrade path"}, nil
}

// processAcquire handles Case C: no usable target subtitle exists yet.
func (p *Pipeline) processAcquire(ctx context.Context, item domain.WantedItem, profile domain.LanguageProfile, query domain.VideoQuery, cfg Config, statFn func(string) bool) (Outcome, error) {
	info, probeErr := p.Media.Analyze(item.FilePath)

	// C1: embedded source ASS.
	if probeErr == nil {
		if track, ok := findEmbeddedSubtitle(info, profile.SourceLanguage, "ass"); ok {
			if outcome, ok := p.translateEmbeddedTrack(ctx, item, profile, cfg, info, track, domain.FormatASS); ok {
				return outcome, nil
			}
		}
		// C2: embedded (or extractable) source SRT.
		if track, ok := findEmbeddedSubtitle(info, profile.SourceLanguage, "srt"); ok {
			if outcome, ok := p.translateEmbeddedTrack(ctx, item, profile, cfg, info, track, domain.FormatSRT); ok {
				return outcome, nil
			}
		}
	}

	// C3: provider search for a source-language subtitle, download, translate.
	srcQuery := query
	srcQuery.TargetLanguage = profile.SourceLanguage
	results, err := p.Providers.Search(ctx, srcQuery)
	if err != nil || len(results) == 0 {
		if cfg.WhisperEnabled {
			return Outcome{Status: domain.StatusTranscribing, Message: "enqueued for transcription"}, nil
		}
		return p.failed(domain.FailureNoSource, "no source subtitle available"), nil
	}

	best := results[0]
	if best.Score < cfg.WhisperScoreFloor && cfg.WhisperEnabled {
		return Outcome{Status: domain.StatusTranscribing, Message: "provider scores below floor, enqueued for transcription"}, nil
	}

	body, err := p.downloadResult(ctx, best)
	if err != nil {
		return p.failed(domain.FailureNoSource, fmt.Sprintf("download: %v", err)), nil
	}

	srcFile, err := subtitle.ParseBytes(body, best.Format)
	if err != nil {
		return p.failed(domain.FailureTranslationError, fmt.Sprintf("parse source subtitle: %v", err)), nil
	}

	return p.translateAndSave(ctx, item, profile, cfg, srcFile, best.Format)
}

// translateEmbeddedTrack extracts one embedded subtitle track, translates
// it, and saves the result. ok is false when extraction or translation
// failed in a way that should fall through to the next case rather than
// fail the whole item.
func (p *Pipeline) translateEmbeddedTrack(ctx context.Context, item domain.WantedItem, profile domain.LanguageProfile, cfg Config, info *media.FileInfo, track media.Track, format domain.SubtitleFormat) (Outcome, bool) {
	tmp, err := os.CreateTemp("", "sublarr-extract-*."+string(format))
	if err != nil {
		return Outcome{}, false
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := p.Media.ExtractTrack(item.FilePath, track.ID, tmpPath); err != nil {
		p.Log.Warn().Err(err).Str("file", item.FilePath).Msg("embedded track extraction failed")
		return Outcome{}, false
	}

	srcFile, err := subtitle.ParseFile(tmpPath)
	if err != nil {
		p.Log.Warn().Err(err).Msg("embedded track parse failed")
		return Outcome{}, false
	}

	outcome, err := p.translateAndSave(ctx, item, profile, cfg, srcFile, format)
	if err != nil {
		return Outcome{}, false
	}
	return outcome, outcome.Status == domain.StatusCompleted
}

// translateAndSave runs the Translation Manager over srcFile's lines and
// writes the result atomically to the canonical output path.
func (p *Pipeline) translateAndSave(ctx context.Context, item domain.WantedItem, profile domain.LanguageProfile, cfg Config, srcFile *subtitle.File, outFormat domain.SubtitleFormat) (Outcome, error) {
	outPath := subtitle.OutputPath(item.FilePath, item.TargetLanguage, item.SubtitleType, outFormat)

	var reference []string
	if ref, err := loadSRTReference(findSiblingSRT(item.FilePath, item.TargetLanguage)); err == nil {
		reference = ref
	}

	glossary := p.resolveGlossary(domain.ScopeGlobal)

	opts := translation.Options{
		SourceLang:          profile.SourceLanguage,
		TargetLang:          item.TargetLanguage,
		SRTReference:        reference,
		Glossary:            glossary,
		BatchSize:           cfg.BatchSize,
		SimilarityThreshold: cfg.SimilarityThreshold,
		SelfEvaluate:        true,
		QualityThreshold:    cfg.QualityThreshold,
		MaxRetries:          cfg.MaxRetries,
	}

	p.suggestGlossaryEntries(item, glossary, srcFile)

	stats, err := translateSubtitle(ctx, p.Translator, srcFile, outPath, opts)
	if err != nil {
		return p.failed(domain.FailureTranslationError, err.Error()), nil
	}

	p.lintTranslation(item, glossary, srcFile)

	data, err := subtitle.Render(srcFile)
	if err != nil {
		return p.failed(domain.FailureFilesystem, err.Error()), nil
	}
	if err := writeAtomic(outPath, data); err != nil {
		return p.failed(domain.FailureFilesystem, err.Error()), nil
	}
	p.refresh(ctx, item.FilePath)

	return Outcome{Status: domain.StatusCompleted, ResultPath: outPath, Stats: stats}, nil
}

// suggestGlossaryEntries scans the untranslated source text for recurring
// names and attack/technique terms not already covered by the resolved
// glossary, logging them as candidates for an operator to add via the
// glossary API (§4.4). It never writes to the glossary itself — entries
// stay user-managed, this only surfaces what a human would otherwise have
// to notice by rewatching the episode.
func (p *Pipeline) suggestGlossaryEntries(item domain.WantedItem, glossary []domain.GlossaryEntry, srcFile *subtitle.File) {
	known := make(map[string]bool, len(glossary))
	for _, g := range glossary {
		known[strings.ToLower(g.SourceTerm)] = true
	}

	for _, entity := range subtitle.ScanEntities(srcFile.Lines) {
		if known[strings.ToLower(entity.Text)] {
			continue
		}
		p.Log.Info().
			Str("file", item.FilePath).
			Str("term", entity.Text).
			Str("kind", string(entity.Kind)).
			Int("occurrences", entity.Count).
			Msg("candidate glossary term not yet configured")
	}
}

func (p *Pipeline) resolveGlossary(scope string) []domain.GlossaryEntry {
	if p.Glossary == nil {
		return nil
	}
	entries, err := p.Glossary(scope)
	if err != nil {
		p.Log.Warn().Err(err).Str("scope", scope).Msg("glossary lookup failed, continuing without it")
		return nil
	}
	return entries
}

// lintTranslation runs the static post-translation checks (§4.6's quality
// gate, alongside the backend's own self-evaluation score) over srcFile's
// lines, auto-repairs what it safely can, and logs the rest: a backend can
// score its own output highly while still leaving an ASS tag unclosed.
func (p *Pipeline) lintTranslation(item domain.WantedItem, glossary []domain.GlossaryEntry, srcFile *subtitle.File) {
	glossaryMap := make(map[string]string, len(glossary))
	for _, g := range glossary {
		glossaryMap[g.SourceTerm] = g.TargetTerm
	}

	issues := subtitle.Lint(srcFile.Lines, subtitle.LintOptions{TargetLang: item.TargetLanguage, Glossary: glossaryMap})
	if len(issues) == 0 {
		return
	}

	fixed := subtitle.AutoFix(srcFile.Lines, issues)
	if len(fixed) > 0 {
		p.Log.Debug().Int("lines_fixed", len(fixed)).Str("file", item.FilePath).Msg("lint auto-fixed translated lines")
	}
	for _, issue := range issues {
		if issue.AutoFixable {
			continue
		}
		p.Log.Warn().
			Str("file", item.FilePath).
			Str("kind", issue.Kind).
			Str("severity", string(issue.Severity)).
			Str("content", issue.Content).
			Msg("translation lint issue")
	}
}

func (p *Pipeline) downloadResult(ctx context.Context, result domain.SubtitleResult) ([]byte, error) {
	if p.Downloader == nil {
		return nil, &sublarrerr.ProviderError{Provider: result.ProviderName, Code: sublarrerr.ProviderNetwork, Message: "no downloader configured"}
	}
	d := p.Downloader(result.ProviderName)
	if d == nil {
		return nil, &sublarrerr.ProviderError{Provider: result.ProviderName, Code: sublarrerr.ProviderNetwork, Message: "unknown provider"}
	}
	return d.Download(ctx, result)
}

func (p *Pipeline) refresh(ctx context.Context, videoPath string) {
	if p.Refresher == nil {
		return
	}
	if err := p.Refresher.Refresh(ctx, videoPath); err != nil {
		p.Log.Warn().Err(err).Str("file", videoPath).Msg("media-server refresh failed")
	}
}

func (p *Pipeline) failed(reason domain.FailureReason, message string) Outcome {
	return Outcome{Status: domain.StatusFailed, FailureReason: reason, Message: message}
}

func findEmbeddedSubtitle(info *media.FileInfo, lang, codecHint string) (media.Track, bool) {
	for _, t := range info.SubtitleTracks() {
		if t.Language != "" && lang != "" && t.Language != lang {
			continue
		}
		if codecHint != "" && t.Codec != "" {
			switch codecHint {
			case "ass":
				if t.Codec != "ass" && t.Codec != "ssa" {
					continue
				}
			case "srt":
				if t.Codec != "subrip" && t.Codec != "srt" {
					continue
				}
			}
		}
		return t, true
	}
	return media.Track{}, false
}

func findSiblingSRT(videoPath, lang string) string {
	path := subtitle.OutputPath(videoPath, lang, domain.SubtitleFull, domain.FormatSRT)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
