// Package scheduler is the background worker runtime (C8): it dispatches
// jobs under a per-kind concurrency semaphore, persists their lifecycle to
// the jobs table, broadcasts transient progress over the event bus, and
// runs the recurring wanted-scan / upgrade-scan / cache-purge cycle under a
// suture supervisor tree so a crashed periodic service restarts on its own.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"golang.org/x/sync/semaphore"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/eventbus"
)

// JobStore is the subset of *store.JobRepo the scheduler needs.
type JobStore interface {
	Create(job domain.Job) error
	MarkRunning(id string) error
	MarkCompleted(id string, stats map[string]any) error
	MarkFailed(id string, errMsg string) error
	Get(id string) (domain.Job, error)
}

// Progress is the single struct §4.8 says workers emit — broadcast only,
// never persisted.
type Progress struct {
	JobID            string  `json:"job_id"`
	Phase            string  `json:"phase"`
	ProgressFraction float64 `json:"progress_fraction"`
	Message          string  `json:"message"`
}

// ProgressFunc lets a running Handler report its own advancement.
type ProgressFunc func(phase string, fraction float64, message string)

// Handler performs the actual work behind one job kind. It must consult
// ctx.Done() at safe points so Cancel can take effect; a context.Canceled
// (or wrapped) error return is treated as a cancellation, not a generic
// failure.
type Handler func(ctx context.Context, job domain.Job, progress ProgressFunc) (map[string]any, error)

// Limits configures the per-kind concurrency semaphore, e.g.
// {JobTranscribe: 1} to serialize Whisper transcription.
type Limits map[domain.JobKind]int64

const defaultLimit = 4

// Scheduler dispatches and tracks background jobs.
type Scheduler struct {
	Jobs JobStore
	Bus  *eventbus.Bus
	Log  zerolog.Logger

	handlers map[domain.JobKind]Handler
	sems     map[domain.JobKind]*semaphore.Weighted
	mu       sync.Mutex

	cancels sync.Map // job ID -> context.CancelFunc
	running sync.Map // scheduled-job name -> struct{} (reentrancy guard)

	root *suture.Supervisor

	// newID is overridable in tests.
	newID func() string
}

// New builds a Scheduler with a semaphore per job kind, defaulting to
// defaultLimit for kinds not named in limits.
func New(jobs JobStore, bus *eventbus.Bus, log zerolog.Logger, limits Limits) *Scheduler {
	sems := make(map[domain.JobKind]*semaphore.Weighted, len(limits))
	for kind, n := range limits {
		if n <= 0 {
			n = 1
		}
		sems[kind] = semaphore.NewWeighted(n)
	}

	slogLog := newSlogBridge(log.With().Str("component", "suture").Logger())
	eventHook := sutureslog.Handler{Logger: slogLog}.MustHook()

	return &Scheduler{
		Jobs:     jobs,
		Bus:      bus,
		Log:      log,
		handlers: make(map[domain.JobKind]Handler),
		sems:     sems,
		root: suture.New("sublarr-scheduler", suture.Spec{
			EventHook: eventHook,
		}),
		newID: func() string { return uuid.NewString() },
	}
}

// Register binds a Handler to a job kind. Call before Submit.
func (s *Scheduler) Register(kind domain.JobKind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Scheduler) semaphoreFor(kind domain.JobKind) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.sems[kind]
	if !ok {
		sem = semaphore.NewWeighted(defaultLimit)
		s.sems[kind] = sem
	}
	return sem
}

// Request is everything Submit needs to identify which WantedItem (or
// inventory instance, for a sync job) a job targets. TargetLanguage and
// SubtitleType are part of a WantedItem's identity (I1); a Handler that
// needs the full item looks it up by (FilePath, TargetLanguage,
// SubtitleType) rather than having it threaded through the job record.
type Request struct {
	Kind           domain.JobKind
	FilePath       string
	TargetLanguage string
	SubtitleType   domain.SubtitleKind
}

// Submit creates a job record and runs it asynchronously once its kind's
// semaphore admits it. It returns the job ID immediately; the caller learns
// the outcome via the jobs table or progress events.
func (s *Scheduler) Submit(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	handler, ok := s.handlers[req.Kind]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("scheduler: no handler registered for job kind %q", req.Kind)
	}

	id := s.newID()
	job := domain.Job{
		ID: id, Kind: req.Kind, FilePath: req.FilePath,
		TargetLanguage: req.TargetLanguage, SubtitleType: req.SubtitleType,
		Status: domain.JobPending, CreatedTS: time.Now(),
	}
	if err := s.Jobs.Create(job); err != nil {
		return "", fmt.Errorf("scheduler: create job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancels.Store(id, cancel)

	go s.run(runCtx, cancel, id, job, handler)
	return id, nil
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, id string, job domain.Job, handler Handler) {
	kind, filePath := job.Kind, job.FilePath
	defer cancel()
	defer s.cancels.Delete(id)

	sem := s.semaphoreFor(kind)
	if err := sem.Acquire(ctx, 1); err != nil {
		_ = s.Jobs.MarkFailed(id, "cancelled before start")
		s.Bus.Emit(eventbus.EventJobFailed, map[string]any{"job_id": id, "reason": "cancelled"})
		return
	}
	defer sem.Release(1)

	if err := s.Jobs.MarkRunning(id); err != nil {
		s.Log.Error().Err(err).Str("job_id", id).Msg("mark running failed")
	}
	s.Bus.Emit(eventbus.EventJobStarted, map[string]any{"job_id": id, "kind": string(kind), "file_path": filePath})

	progress := func(phase string, fraction float64, message string) {
		s.Bus.EmitProgress(map[string]any{
			"job_id":            id,
			"phase":             phase,
			"progress_fraction": fraction,
			"message":           message,
		})
	}

	job.Status = domain.JobRunning
	stats, err := handler(ctx, job, progress)

	if err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		_ = s.Jobs.MarkFailed(id, reason)
		s.Bus.Emit(eventbus.EventJobFailed, map[string]any{"job_id": id, "kind": string(kind), "error": reason})
		return
	}

	_ = s.Jobs.MarkCompleted(id, stats)
	s.Bus.Emit(eventbus.EventJobCompleted, map[string]any{"job_id": id, "kind": string(kind)})
}

// Cancel signals the running job's context; the handler is expected to
// observe ctx.Done() at its next safe point and return promptly. It is a
// no-op if the job is unknown or already terminal.
func (s *Scheduler) Cancel(jobID string) bool {
	v, ok := s.cancels.Load(jobID)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}

// AddScheduledJob registers a recurring service under the supervisor tree
// that fires fn every interval, skipping a tick if the previous run of the
// same name hasn't finished yet (§4.8's reentrancy guarantee).
func (s *Scheduler) AddScheduledJob(name string, interval time.Duration, fn func(ctx context.Context)) {
	s.root.Add(&scheduledJob{name: name, interval: interval, fn: fn, scheduler: s})
}

// Serve starts the supervisor tree and blocks until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.root.Serve(ctx)
}

// scheduledJob is a suture.Service: a ticking loop that skips overlapping
// runs via the scheduler's `running` guard.
type scheduledJob struct {
	name      string
	interval  time.Duration
	fn        func(ctx context.Context)
	scheduler *Scheduler
}

func (j *scheduledJob) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *scheduledJob) tick(ctx context.Context) {
	if _, already := j.scheduler.running.LoadOrStore(j.name, struct{}{}); already {
		j.scheduler.Log.Debug().Str("job", j.name).Msg("scheduled job already running, skipping tick")
		return
	}
	defer j.scheduler.running.Delete(j.name)
	j.fn(ctx)
}
