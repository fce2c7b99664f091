package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/eventbus"
)

type fakeJobStore struct {
	mu        sync.Mutex
	created   []domain.Job
	running   []string
	completed map[string]map[string]any
	failed    map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{completed: map[string]map[string]any{}, failed: map[string]string{}}
}

func (f *fakeJobStore) Create(job domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) MarkRunning(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = append(f.running, id)
	return nil
}

func (f *fakeJobStore) MarkCompleted(id string, stats map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = stats
	return nil
}

func (f *fakeJobStore) MarkFailed(id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobStore) Get(id string) (domain.Job, error) { return domain.Job{}, nil }

func newTestScheduler(jobs *fakeJobStore) *Scheduler {
	s := New(jobs, eventbus.New(1, 16, zerolog.Nop()), zerolog.Nop(), nil)
	n := 0
	s.newID = func() string {
		n++
		return "job-" + strconv.Itoa(n)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubmitRunsRegisteredHandlerToCompletion(t *testing.T) {
	jobs := newFakeJobStore()
	s := newTestScheduler(jobs)
	s.Register(domain.JobTranslate, func(ctx context.Context, job domain.Job, progress ProgressFunc) (map[string]any, error) {
		progress("translating", 0.5, "halfway")
		return map[string]any{"lines": 10}, nil
	})

	id, err := s.Submit(context.Background(), Request{Kind: domain.JobTranslate, FilePath: "/m/Show/S01E01.mkv"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		_, ok := jobs.completed[id]
		return ok
	})

	jobs.mu.Lock()
	stats := jobs.completed[id]
	jobs.mu.Unlock()
	if stats["lines"] != 10 {
		t.Fatalf("expected completed stats to propagate, got %v", stats)
	}
}

func TestSubmitMarksJobFailedOnHandlerError(t *testing.T) {
	jobs := newFakeJobStore()
	s := newTestScheduler(jobs)
	s.Register(domain.JobProviderSearch, func(ctx context.Context, job domain.Job, progress ProgressFunc) (map[string]any, error) {
		return nil, errors.New("provider unreachable")
	})

	id, err := s.Submit(context.Background(), Request{Kind: domain.JobProviderSearch, FilePath: "/m/Show/S01E01.mkv"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		_, ok := jobs.failed[id]
		return ok
	})
}

func TestSubmitUnknownKindReturnsError(t *testing.T) {
	jobs := newFakeJobStore()
	s := newTestScheduler(jobs)

	_, err := s.Submit(context.Background(), Request{Kind: domain.JobTranscribe, FilePath: "/m/Show/S01E01.mkv"})
	if err == nil {
		t.Fatal("expected an error for an unregistered job kind")
	}
}

func TestCancelStopsLongRunningHandler(t *testing.T) {
	jobs := newFakeJobStore()
	s := newTestScheduler(jobs)

	started := make(chan struct{})
	s.Register(domain.JobTranscribe, func(ctx context.Context, job domain.Job, progress ProgressFunc) (map[string]any, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return map[string]any{}, nil
		}
	})

	id, err := s.Submit(context.Background(), Request{Kind: domain.JobTranscribe, FilePath: "/m/Show/S01E01.mkv"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	<-started
	if !s.Cancel(id) {
		t.Fatal("expected Cancel to find the running job")
	}

	waitFor(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		_, ok := jobs.failed[id]
		return ok
	})
}

func TestScheduledJobSkipsOverlappingTick(t *testing.T) {
	jobs := newFakeJobStore()
	s := newTestScheduler(jobs)

	var runs int
	var mu sync.Mutex
	release := make(chan struct{})

	s.AddScheduledJob("wanted_scan", 10*time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	close(release)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("expected exactly one run while the first tick held the reentrancy guard, got %d", runs)
	}
}
