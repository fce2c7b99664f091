// Package eventbus is the non-blocking signal backbone (C2): every
// subsystem emits named events here instead of calling subscribers
// directly, so hooks, webhooks and the progress stream can come and go
// without the emitter knowing they exist.
package eventbus

import "time"

// Event is one occurrence on the bus. Payload is free-form per Name so
// subscribers that care about a given event know its shape; the bus itself
// never inspects it.
type Event struct {
	Name      string
	Payload   map[string]any
	EmittedAt time.Time
}

// Business events: persisted-state transitions subscribers may care about.
const (
	EventWantedItemCreated    = "wanted_item.created"
	EventWantedItemCompleted  = "wanted_item.completed"
	EventWantedItemFailed     = "wanted_item.failed"
	EventScanStarted          = "scan.started"
	EventScanCompleted        = "scan.completed"
	EventJobStarted           = "job.started"
	EventJobCompleted         = "job.completed"
	EventJobFailed            = "job.failed"
	EventHookExecuted         = "hook_executed"
	EventCircuitBreakerOpened = "circuit_breaker.opened"
)

// EventProgress is a high-frequency progress tick. Progress events never
// reach hook or webhook subscribers (§4.2): they exist purely for the
// WS progress channel, which would be flooded with shell/HTTP dispatch
// otherwise.
const EventProgress = "progress"

// isHookEligible reports whether name may be delivered to hook/webhook
// subscribers. hook_executed is excluded so a hook's own execution never
// re-triggers hook dispatch, and progress events are excluded because they
// are WS-only by design.
func isHookEligible(name string) bool {
	return name != EventHookExecuted && name != EventProgress
}
