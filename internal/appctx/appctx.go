// Package appctx wires every component (C1-C9) into one running engine.
// It owns construction order only; the actual behavior lives in each
// component's own package. Grounded on the teacher's cmd/bakasub/main.go
// composition root, generalized from a single TUI program's dependency
// graph to a daemon's store/bus/provider/translation/scheduler graph.
package appctx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/acquisition"
	"github.com/Abrechen2/sublarr/internal/api"
	"github.com/Abrechen2/sublarr/internal/config"
	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/eventbus"
	"github.com/Abrechen2/sublarr/internal/integrations"
	"github.com/Abrechen2/sublarr/internal/media"
	"github.com/Abrechen2/sublarr/internal/providers"
	"github.com/Abrechen2/sublarr/internal/scanner"
	"github.com/Abrechen2/sublarr/internal/scheduler"
	"github.com/Abrechen2/sublarr/internal/store"
	"github.com/Abrechen2/sublarr/internal/translation"
	"github.com/Abrechen2/sublarr/internal/translation/backends"
)

// App holds every wired component for the lifetime of one daemon run.
type App struct {
	Config *config.Config
	Store  *store.Store
	Bus    *eventbus.Bus
	Log    zerolog.Logger

	Providers    *providers.Manager
	providerByName map[string]providers.Provider
	Translator   *translation.Manager
	Media        *media.Toolkit
	MediaServers *integrations.Manager
	ArrClients   []*integrations.ArrClient

	Pipeline *acquisition.Pipeline
	Scanner  *scanner.Scanner
	Watcher  *scanner.Watcher

	Scheduler *scheduler.Scheduler
	API       *api.Server
}

// New builds the full dependency graph. Config is loaded twice: once
// without store overrides (just to learn StorePath from the environment or
// config.json, since the store can't be opened before that's known), then
// again with the now-open store's persisted overrides merged in per I4.
func New() (*App, error) {
	bootstrap, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("appctx: bootstrap config: %w", err)
	}

	log := newLogger(bootstrap.LogLevel)

	st, err := store.Open(bootstrap.StorePath, log)
	if err != nil {
		return nil, fmt.Errorf("appctx: open store: %w", err)
	}

	cfg, err := config.Load(st.Config())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("appctx: load config: %w", err)
	}
	log = newLogger(cfg.LogLevel)

	a := &App{Config: cfg, Store: st, Log: log}

	a.Bus = eventbus.New(4, 256, log)
	a.Bus.Subscribe(eventbus.NewHookSubscriber(st.Hooks(), 10, log))
	a.Bus.Subscribe(eventbus.NewWebhookSubscriber(st.Webhooks(), nil, 10, log))
	a.Bus.Start()

	providerList := make([]providers.Provider, 0, len(cfg.Providers))
	a.providerByName = make(map[string]providers.Provider, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p := providers.NewHTTPProvider(pc.Name, pc.BaseURL, pc.APIKey)
		providerList = append(providerList, p)
		a.providerByName[pc.Name] = p
	}
	scorer := providers.NewScorer(st.Scoring())
	a.Providers = providers.NewManager(providerList, st.ProviderCache(), st.Blacklist(), scorer, log)

	chain, chainErrs := backends.NewChain(cfg.TranslationBackends)
	for _, cerr := range chainErrs {
		log.Warn().Err(cerr).Msg("translation backend skipped")
	}
	a.Translator = translation.NewManager(chain, st.TranslationMemory(), log)

	a.Media = media.NewToolkit(cfg.BinPath)

	a.MediaServers = integrations.NewManager(cfg.MediaServers, log)
	a.ArrClients = make([]*integrations.ArrClient, 0, len(cfg.ArrInstances))
	for _, inst := range cfg.ArrInstances {
		a.ArrClients = append(a.ArrClients, integrations.NewArrClient(inst))
	}

	a.Pipeline = &acquisition.Pipeline{
		Providers: a.Providers,
		Downloader: func(providerName string) acquisition.Downloader {
			if p, ok := a.providerByName[providerName]; ok {
				return p
			}
			return nil
		},
		Translator: a.Translator,
		Media:      a.Media,
		Refresher:  a.MediaServers,
		Glossary:   st.Glossary().ForScope,
		Log:        log.With().Str("component", "acquisition_pipeline").Logger(),
	}

	a.Scheduler = scheduler.New(st.Jobs(), a.Bus, log, schedulerLimits(cfg.JobConcurrency))
	a.registerHandlers()

	a.Scanner = &scanner.Scanner{
		Inventory: st.Inventory(),
		Wanted:    st.Wanted(),
		Config:    st.Config(),
		Media:     a.Media,
		Bus:       a.Bus,
		Enqueuer:  extractEnqueuer{scheduler: a.Scheduler},
		Log:       log.With().Str("component", "wanted_scanner").Logger(),
		Opts: scanner.Options{
			AutoExtractOnScan:   true,
			AutoTranslateOnScan: true,
		},
	}

	if len(cfg.ScanDirs) > 0 {
		watcher, err := scanner.NewWatcher(a.Scanner, log, cfg.ScanDirs...)
		if err != nil {
			log.Warn().Err(err).Strs("dirs", cfg.ScanDirs).Msg("scan directory watcher failed to start")
		} else {
			a.Watcher = watcher
		}
	}

	a.scheduleRecurringJobs()

	a.API = api.New(a.Bus, scanTrigger{scanner: a.Scanner}, log)

	return a, nil
}

// Close stops the watcher and the event bus, then releases the store; the
// scheduler is stopped by cancelling the context passed to Serve/Start.
func (a *App) Close() error {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	a.Bus.Stop()
	return a.Store.Close()
}

// schedulerLimits converts the configured per-kind concurrency map (string
// keys, since that's what JSON/env config can express) into the typed
// scheduler.Limits the domain layer expects.
func schedulerLimits(cfgLimits map[string]int64) scheduler.Limits {
	limits := make(scheduler.Limits, len(cfgLimits))
	for k, v := range cfgLimits {
		limits[domain.JobKind(k)] = v
	}
	return limits
}

// scanTrigger adapts *scanner.Scanner to api.ScanTrigger, discarding the
// Stats the webhook endpoint doesn't need.
type scanTrigger struct{ scanner *scanner.Scanner }

func (t scanTrigger) Run(ctx context.Context, requestedFull bool) error {
	_, err := t.scanner.Run(ctx, requestedFull)
	return err
}

// extractEnqueuer adapts *scheduler.Scheduler to scanner.ExtractEnqueuer.
// Per the decision that Pipeline.Process has no partial extract-only mode,
// both auto-extract and auto-translate collapse to the same JobTranslate
// submission — autoTranslate is accepted for interface compatibility but
// doesn't change what gets submitted.
type extractEnqueuer struct{ scheduler *scheduler.Scheduler }

func (e extractEnqueuer) EnqueueExtract(ctx context.Context, item domain.WantedItem, autoTranslate bool) error {
	_, err := e.scheduler.Submit(ctx, scheduler.Request{
		Kind:           domain.JobTranslate,
		FilePath:       item.FilePath,
		TargetLanguage: item.TargetLanguage,
		SubtitleType:   item.SubtitleType,
	})
	return err
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
