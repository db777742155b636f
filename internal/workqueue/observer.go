package workqueue

// Event identifies a state transition reported to an Observer.
type Event int

const (
	EventSent Event = iota
	EventReceived
	EventAcknowledged
	EventExtended
	EventReleased
	EventExpired
	EventDeadLettered
	EventSinkFailed
	EventPurged
)

func (e Event) String() string {
	switch e {
	case EventSent:
		return "sent"
	case EventReceived:
		return "received"
	case EventAcknowledged:
		return "acknowledged"
	case EventExtended:
		return "extended"
	case EventReleased:
		return "released"
	case EventExpired:
		return "expired"
	case EventDeadLettered:
		return "dead_lettered"
	case EventSinkFailed:
		return "sink_failed"
	case EventPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// Observer is notified after each operation that changed queue state. Calls
// happen outside the queue lock and must not block.
type Observer interface {
	// Observe reports n occurrences of ev on queue.
	Observe(queue string, ev Event, n int)
	// Depth reports the queue's sizes as of the same operation. Snapshots
	// arrive in the order they were taken; one overtaken by a newer
	// snapshot is dropped.
	Depth(queue string, visible, inFlight int)
}

type nopObserver struct{}

func (nopObserver) Observe(string, Event, int) {}
func (nopObserver) Depth(string, int, int)     {}
