package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSubscriber struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingSubscriber) Name() string { return "recorder" }

func (r *recordingSubscriber) Handle(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, evt.Name)
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestBusDispatchesBusinessEvents(t *testing.T) {
	rec := &recordingSubscriber{}
	bus := New(2, 16, zerolog.Nop())
	bus.Subscribe(rec)
	bus.Start()
	defer bus.Stop()

	bus.Emit(EventWantedItemCreated, map[string]any{"id": 1})

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", rec.count())
	}
}

func TestBusExcludesHookExecutedAndProgress(t *testing.T) {
	rec := &recordingSubscriber{}
	bus := New(1, 16, zerolog.Nop())
	bus.Subscribe(rec)
	bus.Start()
	defer bus.Stop()

	bus.Emit(EventHookExecuted, nil)
	bus.Emit(EventProgress, nil)
	bus.Emit(EventWantedItemCompleted, nil)

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond) // let any stray dispatch land

	if rec.count() != 1 {
		t.Fatalf("expected only the business event to reach subscribers, got %d events", rec.count())
	}
}

func TestBusProgressChannelIsIsolated(t *testing.T) {
	bus := New(1, 16, zerolog.Nop())
	bus.Start()
	defer bus.Stop()

	ch := bus.SubscribeProgress(4)
	defer bus.UnsubscribeProgress(ch)

	bus.EmitProgress(map[string]any{"percent": 50})

	select {
	case evt := <-ch:
		if evt.Name != EventProgress {
			t.Fatalf("expected progress event, got %q", evt.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestBusEmitDoesNotBlockWhenQueueFull(t *testing.T) {
	bus := New(0, 1, zerolog.Nop()) // no workers started, queue depth 1
	bus.Emit(EventScanStarted, nil)

	done := make(chan struct{})
	go func() {
		bus.Emit(EventScanCompleted, nil) // queue is full; must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue instead of dropping the event")
	}
}
