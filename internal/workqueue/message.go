package workqueue

import (
	"time"

	"github.com/rzbill/floq/pkg/id"
)

// Message is a point-in-time copy of a queued message. Values returned by
// Receive carry the Receipt for that delivery; everywhere else Receipt is
// zero.
type Message struct {
	Queue         string
	ID            id.ID
	Body          []byte
	EnqueuedAt    time.Time
	NextVisibleAt time.Time
	ReceiveCount  int
	Receipt       Receipt
}

type msgState uint8

const (
	stateVisible msgState = iota
	stateInFlight
)

// record is the engine-owned message. Only the WorkQueue touches it, and
// only while holding its mutex.
type record struct {
	id         id.ID
	body       []byte
	enqueuedAt time.Time
	// seq orders visible messages; it is assigned once at send time so a
	// redelivered message keeps its original place.
	seq uint64

	nextVisibleAt time.Time
	receiveCount  int

	// generation is bumped on every receive. leased is true only while the
	// latest generation may still authorize ack/extend/release.
	generation uint64
	leased     bool

	state   msgState
	heapIdx int
}

func (r *record) snapshot(queue string) Message {
	return Message{
		Queue:         queue,
		ID:            r.id,
		Body:          append([]byte(nil), r.body...),
		EnqueuedAt:    r.enqueuedAt,
		NextVisibleAt: r.nextVisibleAt,
		ReceiveCount:  r.receiveCount,
	}
}
