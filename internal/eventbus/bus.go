package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Subscriber receives every hook-eligible event dispatched by the bus. The
// dispatch worker that takes an event calls every subscriber for it in turn,
// so a slow subscriber delays the others for that event.
type Subscriber interface {
	Name() string
	Handle(Event)
}

// Bus is the process-wide event dispatcher. Emit never blocks the caller:
// events are pushed onto a buffered channel and fanned out by a bounded
// pool of dispatch workers, mirroring the teacher's debounced, goroutine-
// driven fsnotify loop (internal/core/watcher/watcher.go) generalized from
// one filesystem source to an arbitrary number of emitters.
type Bus struct {
	events      chan Event
	subscribers []Subscriber
	workers     int
	log         zerolog.Logger
	done        chan struct{}

	progressMu   sync.Mutex
	progressSubs []chan Event
}

// New creates a Bus with the given dispatch pool size (default 4 if <= 0)
// and event queue depth (default 256 if <= 0).
func New(workers, queueDepth int, log zerolog.Logger) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Bus{
		events:  make(chan Event, queueDepth),
		workers: workers,
		log:     log.With().Str("component", "eventbus").Logger(),
		done:    make(chan struct{}),
	}
}

// Subscribe registers a subscriber. Not safe to call concurrently with
// Start; wire all subscribers before starting the bus.
func (b *Bus) Subscribe(s Subscriber) {
	b.subscribers = append(b.subscribers, s)
}

// Start launches the dispatch pool. Call Stop to drain and shut down.
func (b *Bus) Start() {
	for i := 0; i < b.workers; i++ {
		go b.dispatchLoop()
	}
}

// Stop closes the event channel, letting in-flight dispatch workers drain
// before returning.
func (b *Bus) Stop() {
	close(b.events)
	for i := 0; i < b.workers; i++ {
		<-b.done
	}
}

// Emit queues an event for dispatch. If the queue is full, the event is
// dropped and logged rather than blocking the emitter — a progress tick
// losing a frame is preferable to the scanner or translation manager
// stalling on a subscriber.
func (b *Bus) Emit(name string, payload map[string]any) {
	evt := Event{Name: name, Payload: payload, EmittedAt: time.Now()}
	select {
	case b.events <- evt:
	default:
		b.log.Warn().Str("event", name).Msg("event queue full, dropping event")
	}
}

// SubscribeProgress returns a channel of progress events for one WS
// connection. Call UnsubscribeProgress when the connection closes. The
// channel is never delivered business events or hook/webhook traffic.
func (b *Bus) SubscribeProgress(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)
	b.progressMu.Lock()
	b.progressSubs = append(b.progressSubs, ch)
	b.progressMu.Unlock()
	return ch
}

// UnsubscribeProgress removes and closes a progress channel.
func (b *Bus) UnsubscribeProgress(ch chan Event) {
	b.progressMu.Lock()
	defer b.progressMu.Unlock()
	for i, c := range b.progressSubs {
		if c == ch {
			b.progressSubs = append(b.progressSubs[:i], b.progressSubs[i+1:]...)
			close(ch)
			return
		}
	}
}

// EmitProgress fans a progress tick out to every WS subscriber without
// touching the hook/webhook dispatch path. A slow or disconnected reader
// never blocks the emitter; its frame is simply dropped.
func (b *Bus) EmitProgress(payload map[string]any) {
	evt := Event{Name: EventProgress, Payload: payload, EmittedAt: time.Now()}
	b.progressMu.Lock()
	defer b.progressMu.Unlock()
	for _, ch := range b.progressSubs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Bus) dispatchLoop() {
	for evt := range b.events {
		if !isHookEligible(evt.Name) {
			continue
		}
		for _, sub := range b.subscribers {
			b.safeHandle(sub, evt)
		}
	}
	b.done <- struct{}{}
}

func (b *Bus) safeHandle(sub Subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("subscriber", sub.Name()).Str("event", evt.Name).
				Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	sub.Handle(evt)
}
