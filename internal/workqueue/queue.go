package workqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rzbill/floq/pkg/id"
	"github.com/rzbill/floq/pkg/log"
)

// Options configures a Queue. VisibilityTimeout and MaxReceiveCount are
// required; everything else has a default.
type Options struct {
	// Name labels log entries, observer events and dead-letter snapshots.
	Name string
	// VisibilityTimeout is how long a received message stays hidden.
	VisibilityTimeout time.Duration
	// MaxReceiveCount is the number of receives a message may have before
	// the next one dead-letters it instead.
	MaxReceiveCount int

	Clock      clock.Clock
	Logger     log.Logger
	DeadLetter DeadLetterSink
	Observer   Observer
	IDs        *id.Generator
}

// Counts holds queue cardinalities after an expiry sweep.
type Counts struct {
	Visible  int `json:"visible"`
	InFlight int `json:"inFlight"`
}

// Queue is an in-memory visibility-timeout queue. All methods are safe for
// concurrent use.
type Queue struct {
	name       string
	visibility time.Duration
	maxRecv    int

	clock  clock.Clock
	logger log.Logger
	sink   DeadLetterSink
	obs    Observer
	ids    *id.Generator

	mu       sync.Mutex
	byID     map[id.ID]*record
	index    visibilityIndex
	lastSeq  uint64
	closed   bool
	notifyCh chan struct{}
	depthSeq uint64

	// pubMu orders Depth publication; published is the newest depthSeq
	// handed to the observer.
	pubMu     sync.Mutex
	published uint64
}

// New validates opts and returns an empty queue.
func New(opts Options) (*Queue, error) {
	if opts.VisibilityTimeout <= 0 {
		return nil, fmt.Errorf("%w: visibility timeout must be positive, got %s", ErrInvalidArgument, opts.VisibilityTimeout)
	}
	if opts.MaxReceiveCount < 1 {
		return nil, fmt.Errorf("%w: max receive count must be >= 1, got %d", ErrInvalidArgument, opts.MaxReceiveCount)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	logger := opts.Logger.With(log.Component("workqueue"), log.Str("queue", opts.Name))
	if opts.DeadLetter == nil {
		opts.DeadLetter = logSink{logger: logger}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	return &Queue{
		name:       opts.Name,
		visibility: opts.VisibilityTimeout,
		maxRecv:    opts.MaxReceiveCount,
		clock:      opts.Clock,
		logger:     logger,
		sink:       opts.DeadLetter,
		obs:        opts.Observer,
		ids:        opts.IDs,
		byID:       make(map[id.ID]*record),
		notifyCh:   make(chan struct{}),
	}, nil
}

// Name returns the queue's configured name.
func (q *Queue) Name() string { return q.name }

// VisibilityTimeout returns the configured visibility window.
func (q *Queue) VisibilityTimeout() time.Duration { return q.visibility }

// MaxReceiveCount returns the configured receive budget.
func (q *Queue) MaxReceiveCount() int { return q.maxRecv }

// effects collects what happened inside the critical section so it can be
// reported after the lock is released.
type effects struct {
	events  map[Event]int
	dead    []Message
	depth   bool
	seq     uint64
	visible int
	flight  int
}

func (e *effects) add(ev Event, n int) {
	if n == 0 {
		return
	}
	if e.events == nil {
		e.events = make(map[Event]int, 2)
	}
	e.events[ev] += n
}

// settleLocked snapshots the sizes for the observer. Must hold q.mu.
func (q *Queue) settleLocked(e *effects) {
	q.depthSeq++
	e.depth = true
	e.seq = q.depthSeq
	e.visible, e.flight = q.index.counts()
}

// flush delivers dead letters and observer events. Must not hold q.mu.
func (q *Queue) flush(ctx context.Context, e *effects) {
	// Dead letters are delivered even when ctx is already cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, msg := range e.dead {
		q.logger.Info("dead-lettering message",
			log.Str("id", msg.ID.String()),
			log.Int("receive_count", msg.ReceiveCount))
		if err := q.sink.OnDeadLetter(ctx, msg); err != nil {
			q.logger.Error("dead-letter sink failed", log.Str("id", msg.ID.String()), log.Err(err))
			e.add(EventSinkFailed, 1)
		}
	}
	for ev, n := range e.events {
		q.obs.Observe(q.name, ev, n)
	}
	if e.depth {
		q.publishDepth(e)
	}
}

// publishDepth reports e's sizes unless a newer snapshot already went out.
func (q *Queue) publishDepth(e *effects) {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	if e.seq <= q.published {
		return
	}
	q.published = e.seq
	q.obs.Depth(q.name, e.visible, e.flight)
}

// notifyLocked wakes every goroutine parked in ReceiveWait. Must hold q.mu.
func (q *Queue) notifyLocked() {
	close(q.notifyCh)
	q.notifyCh = make(chan struct{})
}

// sweepLocked returns every lapsed in-flight message to the visible set and
// revokes its receipt. Must hold q.mu.
func (q *Queue) sweepLocked(now time.Time, e *effects) {
	due := q.index.popDue(now)
	if len(due) == 0 {
		return
	}
	for _, r := range due {
		revokeReceipt(r)
		q.index.pushVisible(r)
	}
	e.add(EventExpired, len(due))
	q.logger.Debug("visibility expired", log.Int("count", len(due)))
	q.notifyLocked()
}

// Send enqueues body as a new, immediately visible message. body is copied.
func (q *Queue) Send(ctx context.Context, body []byte) (id.ID, error) {
	var e effects
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return id.Zero, ErrClosed
	}
	now := q.clock.Now()
	q.lastSeq++
	r := &record{
		id:            q.ids.Next(),
		body:          append([]byte(nil), body...),
		enqueuedAt:    now,
		seq:           q.lastSeq,
		nextVisibleAt: now,
		heapIdx:       -1,
	}
	q.byID[r.id] = r
	q.index.pushVisible(r)
	q.notifyLocked()
	e.add(EventSent, 1)
	q.settleLocked(&e)
	q.mu.Unlock()

	q.flush(ctx, &e)
	return r.id, nil
}

// Receive returns the earliest-enqueued visible message, hiding it for the
// visibility timeout under a freshly minted receipt. It never blocks; ok is
// false when nothing is visible. Messages whose receive budget is exhausted
// are dead-lettered on the way and never returned.
func (q *Queue) Receive(ctx context.Context) (msg Message, ok bool) {
	var e effects
	q.mu.Lock()
	msg, ok = q.receiveLocked(&e)
	q.mu.Unlock()

	q.flush(ctx, &e)
	return msg, ok
}

// receiveLocked must hold q.mu.
func (q *Queue) receiveLocked(e *effects) (Message, bool) {
	now := q.clock.Now()
	q.sweepLocked(now, e)
	defer q.settleLocked(e)
	for {
		r := q.index.popVisible()
		if r == nil {
			return Message{}, false
		}
		r.receiveCount++
		if r.receiveCount > q.maxRecv {
			delete(q.byID, r.id)
			revokeReceipt(r)
			e.dead = append(e.dead, r.snapshot(q.name))
			e.add(EventDeadLettered, 1)
			continue
		}
		r.nextVisibleAt = now.Add(q.visibility)
		receipt := mintReceipt(r)
		q.index.pushInFlight(r)
		if r.heapIdx == 0 {
			// New earliest deadline: waiters must re-arm their timers.
			q.notifyLocked()
		}
		e.add(EventReceived, 1)
		msg := r.snapshot(q.name)
		msg.Receipt = receipt
		return msg, true
	}
}

// lookupLocked sweeps and returns the record receipt currently authorizes,
// or nil. Must hold q.mu.
func (q *Queue) lookupLocked(receipt Receipt, e *effects) *record {
	q.sweepLocked(q.clock.Now(), e)
	r := q.byID[receipt.MessageID]
	if !receipt.authorizes(r) {
		return nil
	}
	return r
}

// Acknowledge deletes the message if receipt is its live credential. A
// stale, unknown or lapsed receipt returns false and changes nothing.
func (q *Queue) Acknowledge(ctx context.Context, receipt Receipt) bool {
	var e effects
	q.mu.Lock()
	r := q.lookupLocked(receipt, &e)
	if r != nil {
		q.index.remove(r)
		revokeReceipt(r)
		delete(q.byID, r.id)
		e.add(EventAcknowledged, 1)
	}
	q.settleLocked(&e)
	q.mu.Unlock()

	q.flush(ctx, &e)
	return r != nil
}

// ExtendVisibility pushes the message's deadline out by extra, keeping the
// same receipt and receive count. A negative extra is a caller error.
func (q *Queue) ExtendVisibility(ctx context.Context, receipt Receipt, extra time.Duration) (bool, error) {
	if extra < 0 {
		return false, fmt.Errorf("%w: negative visibility extension %s", ErrInvalidArgument, extra)
	}
	var e effects
	q.mu.Lock()
	r := q.lookupLocked(receipt, &e)
	if r != nil {
		r.nextVisibleAt = r.nextVisibleAt.Add(extra)
		q.index.fixInFlight(r)
		e.add(EventExtended, 1)
	}
	q.settleLocked(&e)
	q.mu.Unlock()

	q.flush(ctx, &e)
	return r != nil, nil
}

// Release makes the message visible again immediately and revokes receipt,
// as if its visibility timeout had lapsed. The receive count is kept.
func (q *Queue) Release(ctx context.Context, receipt Receipt) bool {
	var e effects
	q.mu.Lock()
	r := q.lookupLocked(receipt, &e)
	if r != nil {
		q.index.remove(r)
		revokeReceipt(r)
		r.nextVisibleAt = q.clock.Now()
		q.index.pushVisible(r)
		q.notifyLocked()
		e.add(EventReleased, 1)
	}
	q.settleLocked(&e)
	q.mu.Unlock()

	q.flush(ctx, &e)
	return r != nil
}

// Counts applies pending expiries and reports the visible and in-flight
// cardinalities.
func (q *Queue) Counts(ctx context.Context) Counts {
	var e effects
	q.mu.Lock()
	q.sweepLocked(q.clock.Now(), &e)
	q.settleLocked(&e)
	c := Counts{Visible: e.visible, InFlight: e.flight}
	q.mu.Unlock()

	q.flush(ctx, &e)
	return c
}

// Get returns a snapshot of a live message without changing it.
func (q *Queue) Get(msgID id.ID) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.byID[msgID]
	if !ok {
		return Message{}, false
	}
	return r.snapshot(q.name), true
}

// Purge drops every live message and revokes all outstanding receipts. It
// returns the number of messages removed.
func (q *Queue) Purge(ctx context.Context) int {
	var e effects
	q.mu.Lock()
	n := len(q.byID)
	for _, r := range q.byID {
		revokeReceipt(r)
	}
	q.index.reset()
	q.byID = make(map[id.ID]*record)
	q.notifyLocked()
	e.add(EventPurged, n)
	q.settleLocked(&e)
	q.mu.Unlock()

	if n > 0 {
		q.logger.Info("queue purged", log.Int("count", n))
	}
	q.flush(ctx, &e)
	return n
}

// Close rejects further sends and wakes all long-pollers with ErrClosed.
// Messages already in the queue can still be received and acknowledged.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.notifyLocked()
	return nil
}
