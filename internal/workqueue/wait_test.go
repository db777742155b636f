package workqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRealClockQueue(t *testing.T, vt time.Duration, maxRecv int) *Queue {
	t.Helper()
	q, err := New(Options{Name: "wait", VisibilityTimeout: vt, MaxReceiveCount: maxRecv})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestReceiveWaitRejectsNegativeTimeout(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	_, _, err := q.ReceiveWait(context.Background(), -time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReceiveWaitReturnsImmediatelyWhenVisible(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("ready"))
	require.NoError(t, err)

	msg, ok, err := q.ReceiveWait(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ready", string(msg.Body))
}

func TestReceiveWaitTimesOut(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	start := time.Now()
	_, ok, err := q.ReceiveWait(context.Background(), 60*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestReceiveWaitWakesOnSend(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	ctx := context.Background()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = q.Send(ctx, []byte("late"))
	}()

	start := time.Now()
	msg, ok, err := q.ReceiveWait(ctx, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "late", string(msg.Body))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReceiveWaitWakesOnExpiry(t *testing.T) {
	q := newRealClockQueue(t, 80*time.Millisecond, 3)
	ctx := context.Background()
	_, err := q.Send(ctx, []byte("A"))
	require.NoError(t, err)
	first, ok := q.Receive(ctx)
	require.True(t, ok)

	start := time.Now()
	second, ok, err := q.ReceiveWait(ctx, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReceiveWaitWakesOnRelease(t *testing.T) {
	q := newRealClockQueue(t, time.Minute, 3)
	ctx := context.Background()
	_, _ = q.Send(ctx, []byte("A"))
	held, ok := q.Receive(ctx)
	require.True(t, ok)

	go func() {
		time.Sleep(30 * time.Millisecond)
		q.Release(ctx, held.Receipt)
	}()

	msg, ok, err := q.ReceiveWait(ctx, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, held.ID, msg.ID)
}

func TestReceiveWaitHonoursContext(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_, ok, err := q.ReceiveWait(ctx, 10*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestReceiveWaitUnblocksOnClose(t *testing.T) {
	q := newRealClockQueue(t, time.Second, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = q.Close()
	}()
	_, ok, err := q.ReceiveWait(context.Background(), 10*time.Second)
	require.ErrorIs(t, err, ErrClosed)
	assert.False(t, ok)
}

func TestReceiveWaitManyWaitersOneMessage(t *testing.T) {
	q := newRealClockQueue(t, time.Minute, 1)
	ctx := context.Background()

	const waiters = 4
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok, _ := q.ReceiveWait(ctx, 300*time.Millisecond)
			results <- ok
		}()
	}
	time.Sleep(20 * time.Millisecond)
	_, err := q.Send(ctx, []byte("one"))
	require.NoError(t, err)

	got := 0
	for i := 0; i < waiters; i++ {
		if <-results {
			got++
		}
	}
	assert.Equal(t, 1, got)
}
