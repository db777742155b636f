package workqueue

import (
	"context"

	"github.com/rzbill/floq/pkg/log"
)

// DeadLetterSink receives messages that exhausted their receive budget.
// OnDeadLetter is called exactly once per evicted message, never while the
// queue's lock is held. A returned error is logged and counted; the message
// is already gone from the queue either way.
type DeadLetterSink interface {
	OnDeadLetter(ctx context.Context, msg Message) error
}

// DeadLetterFunc adapts a function to DeadLetterSink.
type DeadLetterFunc func(ctx context.Context, msg Message) error

// OnDeadLetter calls f(ctx, msg).
func (f DeadLetterFunc) OnDeadLetter(ctx context.Context, msg Message) error { return f(ctx, msg) }

// logSink is the default sink: it records the eviction and drops the body.
type logSink struct{ logger log.Logger }

func (s logSink) OnDeadLetter(_ context.Context, msg Message) error {
	s.logger.Warn("message dead-lettered without a sink",
		log.Str("queue", msg.Queue),
		log.Str("id", msg.ID.String()),
		log.Int("receive_count", msg.ReceiveCount))
	return nil
}
