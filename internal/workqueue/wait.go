package workqueue

import (
	"context"
	"fmt"
	"time"
)

// ReceiveWait is the long-polling form of Receive. It returns as soon as a
// message can be received, or with ok=false once timeout has elapsed. While
// parked it is woken by sends, releases, and a timer armed at the earliest
// in-flight deadline, so lapsed messages are picked up without polling.
//
// A zero timeout makes a single attempt. A negative timeout is rejected with
// ErrInvalidArgument. Cancelling ctx returns ctx.Err(); closing the queue
// returns ErrClosed.
func (q *Queue) ReceiveWait(ctx context.Context, timeout time.Duration) (Message, bool, error) {
	if timeout < 0 {
		return Message{}, false, fmt.Errorf("%w: negative wait %s", ErrInvalidArgument, timeout)
	}
	deadline := q.clock.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, false, err
		}

		var e effects
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Message{}, false, ErrClosed
		}
		msg, ok := q.receiveLocked(&e)
		ch := q.notifyCh
		next, hasNext := q.index.earliestDeadline()
		q.mu.Unlock()
		q.flush(ctx, &e)

		if ok {
			return msg, true, nil
		}

		// Remaining time is recomputed every round so spurious wakeups
		// neither shorten nor stretch the overall wait.
		now := q.clock.Now()
		wait := deadline.Sub(now)
		if wait <= 0 {
			return Message{}, false, nil
		}
		if hasNext {
			if d := next.Sub(now); d < wait {
				wait = d
			}
		}
		if wait <= 0 {
			continue
		}

		t := q.clock.Timer(wait)
		select {
		case <-ch:
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return Message{}, false, ctx.Err()
		}
		t.Stop()
	}
}
