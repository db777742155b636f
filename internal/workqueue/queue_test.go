package workqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/floq/pkg/id"
)

// captureSink records every dead letter it receives.
type captureSink struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *captureSink) OnDeadLetter(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *captureSink) got() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

type countingObserver struct {
	mu     sync.Mutex
	events map[Event]int
	depth  Counts
}

func (o *countingObserver) Observe(_ string, ev Event, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.events == nil {
		o.events = map[Event]int{}
	}
	o.events[ev] += n
}

func (o *countingObserver) Depth(_ string, visible, inFlight int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth = Counts{Visible: visible, InFlight: inFlight}
}

func (o *countingObserver) count(ev Event) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[ev]
}

func newTestQueue(t *testing.T, vt time.Duration, maxRecv int) (*Queue, *clock.Mock, *captureSink) {
	t.Helper()
	mock := clock.NewMock()
	sink := &captureSink{}
	q, err := New(Options{
		Name:              "test",
		VisibilityTimeout: vt,
		MaxReceiveCount:   maxRecv,
		Clock:             mock,
		DeadLetter:        sink,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, mock, sink
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{VisibilityTimeout: 0, MaxReceiveCount: 1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Options{VisibilityTimeout: time.Second, MaxReceiveCount: 0})
	require.ErrorIs(t, err, ErrInvalidArgument)

	q, err := New(Options{VisibilityTimeout: time.Second, MaxReceiveCount: 1})
	require.NoError(t, err)
	assert.Equal(t, time.Second, q.VisibilityTimeout())
	assert.Equal(t, 1, q.MaxReceiveCount())
}

func TestSendReceiveAcknowledge(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Second, 3)
	ctx := context.Background()

	msgID, err := q.Send(ctx, []byte("X"))
	require.NoError(t, err)

	msg, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, msgID, msg.ID)
	assert.Equal(t, []byte("X"), msg.Body)
	assert.Equal(t, 1, msg.ReceiveCount)
	assert.False(t, msg.Receipt.IsZero())
	assert.Equal(t, Counts{Visible: 0, InFlight: 1}, q.Counts(ctx))

	assert.True(t, q.Acknowledge(ctx, msg.Receipt))
	assert.Equal(t, Counts{}, q.Counts(ctx))

	_, ok = q.Receive(ctx)
	assert.False(t, ok)
}

func TestSendCopiesBody(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Second, 1)
	ctx := context.Background()
	body := []byte("abc")
	_, err := q.Send(ctx, body)
	require.NoError(t, err)
	body[0] = 'z'

	msg, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), msg.Body)

	msg.Body[0] = 'q'
	got, ok := q.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got.Body)
}

func TestReceiveEmpty(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Second, 1)
	_, ok := q.Receive(context.Background())
	assert.False(t, ok)
}

func TestReceiveOrderIsEnqueueOrder(t *testing.T) {
	q, mock, _ := newTestQueue(t, time.Second, 5)
	ctx := context.Background()
	for _, b := range []string{"a", "b", "c"} {
		_, err := q.Send(ctx, []byte(b))
		require.NoError(t, err)
	}

	first, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", string(first.Body))

	// "a" lapses and returns ahead of "b" and "c" since it was enqueued first.
	mock.Add(time.Second)
	var order []string
	for {
		m, ok := q.Receive(ctx)
		if !ok {
			break
		}
		order = append(order, string(m.Body))
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRedeliveryAfterTimeout(t *testing.T) {
	q, mock, _ := newTestQueue(t, 100*time.Millisecond, 5)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)

	first, ok := q.Receive(ctx)
	require.True(t, ok)

	// Still hidden just before the deadline.
	mock.Add(99 * time.Millisecond)
	_, ok = q.Receive(ctx)
	assert.False(t, ok)

	mock.Add(time.Millisecond)
	second, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ReceiveCount+1, second.ReceiveCount)
	assert.NotEqual(t, first.Receipt, second.Receipt)

	assert.False(t, q.Acknowledge(ctx, first.Receipt), "superseded receipt must fail")
	assert.Equal(t, Counts{InFlight: 1}, q.Counts(ctx))
	assert.True(t, q.Acknowledge(ctx, second.Receipt))
}

func TestLapsedReceiptRejectedWithoutInterveningReceive(t *testing.T) {
	q, mock, _ := newTestQueue(t, time.Second, 5)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)
	msg, ok := q.Receive(ctx)
	require.True(t, ok)

	mock.Add(time.Second)
	assert.False(t, q.Acknowledge(ctx, msg.Receipt))
	ok, err = q.ExtendVisibility(ctx, msg.Receipt, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, q.Release(ctx, msg.Receipt))
	assert.Equal(t, Counts{Visible: 1}, q.Counts(ctx))
}

func TestStaleAckDoesNotRemove(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Second, 5)
	ctx := context.Background()
	msgID, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)

	assert.False(t, q.Acknowledge(ctx, Receipt{MessageID: msgID, Generation: 1}))
	assert.False(t, q.Acknowledge(ctx, Receipt{MessageID: id.NewGenerator().Next(), Generation: 1}))
	assert.False(t, q.Acknowledge(ctx, Receipt{}))

	msg, ok := q.Receive(ctx)
	require.True(t, ok)
	bad := msg.Receipt
	bad.Generation++
	assert.False(t, q.Acknowledge(ctx, bad))
	assert.Equal(t, Counts{InFlight: 1}, q.Counts(ctx))

	assert.True(t, q.Acknowledge(ctx, msg.Receipt))
	assert.False(t, q.Acknowledge(ctx, msg.Receipt), "double ack")
}

func TestExtendVisibility(t *testing.T) {
	q, mock, _ := newTestQueue(t, time.Second, 5)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)
	msg, ok := q.Receive(ctx)
	require.True(t, ok)

	_, err = q.ExtendVisibility(ctx, msg.Receipt, -time.Second)
	require.ErrorIs(t, err, ErrInvalidArgument)

	mock.Add(900 * time.Millisecond)
	ok, err = q.ExtendVisibility(ctx, msg.Receipt, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Original deadline passes; the extension keeps it hidden.
	mock.Add(time.Second)
	_, ok = q.Receive(ctx)
	assert.False(t, ok)

	got, ok := q.Get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.ReceiveCount)
	assert.Equal(t, msg.NextVisibleAt.Add(2*time.Second), got.NextVisibleAt)

	assert.True(t, q.Acknowledge(ctx, msg.Receipt), "extension keeps the receipt")
}

func TestExtendReordersDeadlines(t *testing.T) {
	q, mock, _ := newTestQueue(t, time.Second, 5)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("a"))
	_, _ = q.Send(ctx, []byte("b"))
	a, _ := q.Receive(ctx)
	b, _ := q.Receive(ctx)

	ok, err := q.ExtendVisibility(ctx, a.Receipt, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mock.Add(time.Second)
	m, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, b.ID, m.ID)
	_, ok = q.Receive(ctx)
	assert.False(t, ok)
}

func TestRelease(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute, 5)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("A"))
	msg, ok := q.Receive(ctx)
	require.True(t, ok)

	assert.True(t, q.Release(ctx, msg.Receipt))
	assert.False(t, q.Release(ctx, msg.Receipt))
	assert.False(t, q.Acknowledge(ctx, msg.Receipt))
	assert.Equal(t, Counts{Visible: 1}, q.Counts(ctx))

	again, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, again.ReceiveCount)
}

func TestDeadLetterAfterMaxReceives(t *testing.T) {
	q, mock, sink := newTestQueue(t, 100*time.Millisecond, 2)
	ctx := context.Background()
	msgID, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)

	first, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, first.ReceiveCount)

	mock.Add(150 * time.Millisecond)
	second, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, second.ReceiveCount)
	assert.False(t, q.Acknowledge(ctx, first.Receipt))

	mock.Add(150 * time.Millisecond)
	_, ok = q.Receive(ctx)
	assert.False(t, ok, "third receive exceeds the budget")
	_, ok = q.Receive(ctx)
	assert.False(t, ok)

	dead := sink.got()
	require.Len(t, dead, 1)
	assert.Equal(t, msgID, dead[0].ID)
	assert.Equal(t, "test", dead[0].Queue)
	assert.Equal(t, 3, dead[0].ReceiveCount)
	assert.True(t, dead[0].Receipt.IsZero())
	assert.False(t, q.Acknowledge(ctx, second.Receipt))
	assert.Equal(t, Counts{}, q.Counts(ctx))

	mock.Add(time.Hour)
	_, ok = q.Receive(ctx)
	assert.False(t, ok)
	assert.Len(t, sink.got(), 1, "dead-lettered exactly once")
}

func TestDeadLetterSkipsToNextCandidate(t *testing.T) {
	q, mock, sink := newTestQueue(t, time.Second, 1)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("old"))
	_, _ = q.Receive(ctx)
	_, _ = q.Send(ctx, []byte("new"))

	mock.Add(time.Second)
	m, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, "new", string(m.Body))
	require.Len(t, sink.got(), 1)
	assert.Equal(t, "old", string(sink.got()[0].Body))
}

func TestSinkErrorDoesNotAffectQueue(t *testing.T) {
	obs := &countingObserver{}
	sink := &captureSink{err: errors.New("boom")}
	mock := clock.NewMock()
	q, err := New(Options{Name: "s", VisibilityTimeout: time.Second, MaxReceiveCount: 1, Clock: mock, DeadLetter: sink, Observer: obs})
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = q.Send(ctx, []byte("A"))
	_, _ = q.Receive(ctx)
	mock.Add(time.Second)
	_, ok := q.Receive(ctx)
	assert.False(t, ok)
	assert.Len(t, sink.got(), 1)
	assert.Equal(t, 1, obs.count(EventDeadLettered))
	assert.Equal(t, 1, obs.count(EventSinkFailed))
	assert.Equal(t, 1, obs.count(EventExpired))
}

func TestDeadLetterFunc(t *testing.T) {
	var got []string
	mock := clock.NewMock()
	q, err := New(Options{
		VisibilityTimeout: time.Second,
		MaxReceiveCount:   1,
		Clock:             mock,
		DeadLetter: DeadLetterFunc(func(_ context.Context, m Message) error {
			got = append(got, string(m.Body))
			return nil
		}),
	})
	require.NoError(t, err)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("A"))
	_, _ = q.Receive(ctx)
	mock.Add(time.Second)
	_, _ = q.Receive(ctx)
	assert.Equal(t, []string{"A"}, got)
}

func TestBogusTokenThenRealAck(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Second, 3)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("X"))
	require.NoError(t, err)

	_, err = ParseReceipt("not-a-receipt")
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, q.Acknowledge(ctx, Receipt{MessageID: id.NewGenerator().Next(), Generation: 42}))

	msg, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, msg.ReceiveCount)
	assert.True(t, q.Acknowledge(ctx, msg.Receipt))
	_, ok = q.Receive(ctx)
	assert.False(t, ok)
}

func TestConcurrentReceiveSingleMessage(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("only"))
	require.NoError(t, err)

	const consumers = 2
	results := make([]bool, consumers)
	var g errgroup.Group
	start := make(chan struct{})
	for i := 0; i < consumers; i++ {
		i := i
		g.Go(func() error {
			<-start
			_, results[i] = q.Receive(ctx)
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	got := 0
	for _, ok := range results {
		if ok {
			got++
		}
	}
	assert.Equal(t, 1, got)
}

func TestNoDuplicateLiveReceiptsUnderContention(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()
	const n = 200
	for i := 0; i < n; i++ {
		_, err := q.Send(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[id.ID]int)
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for {
				m, ok := q.Receive(ctx)
				if !ok {
					return nil
				}
				mu.Lock()
				seen[m.ID]++
				mu.Unlock()
				if !q.Acknowledge(ctx, m.Receipt) {
					return errors.New("ack of a fresh receipt failed")
				}
			}
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, seen, n)
	for _, c := range seen {
		assert.Equal(t, 1, c)
	}
	assert.Equal(t, Counts{}, q.Counts(ctx))
}

func TestPurge(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("a"))
	_, _ = q.Send(ctx, []byte("b"))
	m, ok := q.Receive(ctx)
	require.True(t, ok)

	assert.Equal(t, 2, q.Purge(ctx))
	assert.Equal(t, Counts{}, q.Counts(ctx))
	assert.False(t, q.Acknowledge(ctx, m.Receipt))
	assert.Equal(t, 0, q.Purge(ctx))

	_, err := q.Send(ctx, []byte("c"))
	require.NoError(t, err)
	m, ok = q.Receive(ctx)
	require.True(t, ok)
	assert.Equal(t, "c", string(m.Body))
}

func TestCloseRejectsSend(t *testing.T) {
	q, _, _ := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("a"))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, err := q.Send(ctx, []byte("b"))
	require.ErrorIs(t, err, ErrClosed)

	m, ok := q.Receive(ctx)
	require.True(t, ok)
	assert.True(t, q.Acknowledge(ctx, m.Receipt))
}

func TestObserverSeesDepth(t *testing.T) {
	obs := &countingObserver{}
	q, err := New(Options{Name: "o", VisibilityTimeout: time.Second, MaxReceiveCount: 1, Clock: clock.NewMock(), Observer: obs})
	require.NoError(t, err)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("a"))
	_, _ = q.Send(ctx, []byte("b"))
	m, _ := q.Receive(ctx)
	assert.Equal(t, Counts{Visible: 1, InFlight: 1}, obs.depth)
	ok, _ := q.ExtendVisibility(ctx, m.Receipt, time.Second)
	require.True(t, ok)
	require.True(t, q.Release(ctx, m.Receipt))
	assert.Equal(t, 2, obs.count(EventSent))
	assert.Equal(t, 1, obs.count(EventReceived))
	assert.Equal(t, 1, obs.count(EventExtended))
	assert.Equal(t, 1, obs.count(EventReleased))
}

func TestStaleDepthSnapshotIsDropped(t *testing.T) {
	obs := &countingObserver{}
	q, err := New(Options{Name: "o", VisibilityTimeout: time.Second, MaxReceiveCount: 1, Clock: clock.NewMock(), Observer: obs})
	require.NoError(t, err)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("a"))

	var older, newer effects
	q.mu.Lock()
	q.settleLocked(&older)
	_, _ = q.receiveLocked(&effects{})
	q.settleLocked(&newer)
	q.mu.Unlock()

	q.flush(ctx, &newer)
	q.flush(ctx, &older)
	assert.Equal(t, Counts{Visible: 0, InFlight: 1}, obs.depth)
}
