package workqueues

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzbill/floq/internal/deadletter"
	"github.com/rzbill/floq/internal/runtime"
	"github.com/rzbill/floq/internal/workqueue"
	"github.com/rzbill/floq/pkg/id"
	logpkg "github.com/rzbill/floq/pkg/log"
)

// ErrRateLimited is returned by Send when the process-wide send budget is
// exhausted.
var ErrRateLimited = errors.New("workqueues: send rate exceeded")

// Service implements queue operations over a Runtime. Transports translate
// its errors: workqueue.ErrInvalidArgument, workqueue.ErrQueueNotFound,
// deadletter.ErrNotFound, workqueue.ErrClosed and ErrRateLimited.
type Service struct {
	rt      *runtime.Runtime
	logger  logpkg.Logger
	limiter *rate.Limiter

	maxWait      time.Duration
	maxBodyBytes int
}

// New creates a service using the runtime's logger and server settings.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, rt.Logger())
}

// NewWithLogger creates a service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	sc := rt.Config().Server
	s := &Service{
		rt:           rt,
		logger:       logger.WithComponent("workqueues"),
		maxWait:      sc.MaxWait.Duration,
		maxBodyBytes: sc.MaxBodyBytes,
	}
	if sc.SendRatePerSec > 0 {
		burst := sc.SendBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(sc.SendRatePerSec), burst)
	}
	return s
}

// maxDurationMs is the largest millisecond count a time.Duration can hold.
const maxDurationMs = math.MaxInt64 / int64(time.Millisecond)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", workqueue.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Send enqueues req.Body, creating the queue on demand when allowed.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if s.maxBodyBytes > 0 && len(req.Body) > s.maxBodyBytes {
		return nil, invalid("body is %d bytes, limit is %d", len(req.Body), s.maxBodyBytes)
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	q, err := s.rt.Registry().Open(req.Queue)
	if err != nil {
		return nil, err
	}
	msgID, err := q.Send(ctx, req.Body)
	if err != nil {
		return nil, err
	}
	return &SendResponse{ID: msgID.String()}, nil
}

// Receive returns one message, waiting up to req.WaitMs (capped by the
// server's max wait). A nil Message means none became available.
func (s *Service) Receive(ctx context.Context, req *ReceiveRequest) (*ReceiveResponse, error) {
	if req.WaitMs < 0 {
		return nil, invalid("negative waitMs %d", req.WaitMs)
	}
	q, err := s.rt.Registry().Open(req.Queue)
	if err != nil {
		return nil, err
	}
	var wait time.Duration
	switch {
	case s.maxWait > 0 && req.WaitMs > s.maxWait.Milliseconds():
		wait = s.maxWait
	case req.WaitMs > maxDurationMs:
		return nil, invalid("waitMs %d out of range", req.WaitMs)
	default:
		wait = time.Duration(req.WaitMs) * time.Millisecond
	}

	var (
		msg workqueue.Message
		ok  bool
	)
	if wait == 0 {
		msg, ok = q.Receive(ctx)
	} else {
		msg, ok, err = q.ReceiveWait(ctx, wait)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return &ReceiveResponse{}, nil
	}
	return &ReceiveResponse{Message: toMessage(msg)}, nil
}

// Acknowledge deletes the delivered message. An unparsable receipt is
// treated like a stale one.
func (s *Service) Acknowledge(ctx context.Context, req *ReceiptRequest) (*OKResponse, error) {
	q, receipt, ok, err := s.resolve(req.Queue, req.Receipt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &OKResponse{}, nil
	}
	return &OKResponse{OK: q.Acknowledge(ctx, receipt)}, nil
}

// ExtendVisibility adds req.ExtraMs to the delivery's deadline.
func (s *Service) ExtendVisibility(ctx context.Context, req *ExtendRequest) (*OKResponse, error) {
	if req.ExtraMs < 0 {
		return nil, invalid("negative extraMs %d", req.ExtraMs)
	}
	if req.ExtraMs > maxDurationMs {
		return nil, invalid("extraMs %d out of range", req.ExtraMs)
	}
	q, receipt, ok, err := s.resolve(req.Queue, req.Receipt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &OKResponse{}, nil
	}
	extended, err := q.ExtendVisibility(ctx, receipt, time.Duration(req.ExtraMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return &OKResponse{OK: extended}, nil
}

// Release makes the delivered message visible again immediately.
func (s *Service) Release(ctx context.Context, req *ReceiptRequest) (*OKResponse, error) {
	q, receipt, ok, err := s.resolve(req.Queue, req.Receipt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &OKResponse{}, nil
	}
	return &OKResponse{OK: q.Release(ctx, receipt)}, nil
}

// resolve finds the queue and parses the receipt. ok is false for a
// malformed receipt.
func (s *Service) resolve(queue, raw string) (*workqueue.Queue, workqueue.Receipt, bool, error) {
	q, err := s.rt.Registry().Get(queue)
	if err != nil {
		return nil, workqueue.Receipt{}, false, err
	}
	receipt, err := workqueue.ParseReceipt(raw)
	if err != nil {
		s.logger.Debug("rejected receipt", logpkg.Str("queue", queue), logpkg.Err(err))
		return q, workqueue.Receipt{}, false, nil
	}
	return q, receipt, true, nil
}

// Counts reports visible and in-flight cardinalities.
func (s *Service) Counts(ctx context.Context, req *QueueRequest) (*CountsResponse, error) {
	q, err := s.rt.Registry().Get(req.Queue)
	if err != nil {
		return nil, err
	}
	c := q.Counts(ctx)
	return &CountsResponse{Visible: c.Visible, InFlight: c.InFlight}, nil
}

// ListQueues describes every registered queue.
func (s *Service) ListQueues(ctx context.Context) (*ListQueuesResponse, error) {
	names := s.rt.Registry().Names()
	out := &ListQueuesResponse{Queues: make([]QueueInfo, 0, len(names))}
	for _, name := range names {
		q, err := s.rt.Registry().Get(name)
		if err != nil {
			continue
		}
		c := q.Counts(ctx)
		out.Queues = append(out.Queues, QueueInfo{
			Name:                name,
			VisibilityTimeoutMs: q.VisibilityTimeout().Milliseconds(),
			MaxReceiveCount:     q.MaxReceiveCount(),
			Visible:             c.Visible,
			InFlight:            c.InFlight,
		})
	}
	return out, nil
}

// Purge drops every message in the queue.
func (s *Service) Purge(ctx context.Context, req *QueueRequest) (*PurgeResponse, error) {
	q, err := s.rt.Registry().Get(req.Queue)
	if err != nil {
		return nil, err
	}
	n := q.Purge(ctx)
	s.logger.Info("purged queue", logpkg.Str("queue", req.Queue), logpkg.Int("count", n))
	return &PurgeResponse{Purged: n}, nil
}

// ListDeadLetters returns stored dead letters for a queue, newest first.
func (s *Service) ListDeadLetters(_ context.Context, req *ListDeadLettersRequest) (*ListDeadLettersResponse, error) {
	if err := workqueue.ValidateName(req.Queue); err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, invalid("negative limit %d", req.Limit)
	}
	filter, err := deadletter.CompileFilter(req.Filter)
	if err != nil {
		return nil, invalid("filter: %v", err)
	}
	store := s.rt.DeadLetters()
	entries, err := store.List(req.Queue, deadletter.ListOptions{Limit: req.Limit, Filter: filter})
	if err != nil {
		return nil, err
	}
	stats, err := store.Stats(req.Queue)
	if err != nil {
		return nil, err
	}
	out := &ListDeadLettersResponse{Entries: make([]DeadLetter, 0, len(entries)), Stored: stats.Count}
	for _, e := range entries {
		out.Entries = append(out.Entries, DeadLetter{
			ID:           e.ID.String(),
			Body:         e.Body,
			ReceiveCount: e.ReceiveCount,
			EnqueuedAtMs: e.EnqueuedAt.UnixMilli(),
			DeadAtMs:     e.DeadAt.UnixMilli(),
		})
	}
	return out, nil
}

// Redrive sends a stored dead letter's body back to its queue as a new
// message and removes it from the store.
func (s *Service) Redrive(ctx context.Context, req *DeadLetterRequest) (*RedriveResponse, error) {
	msgID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	store := s.rt.DeadLetters()
	entry, err := store.Get(req.Queue, msgID)
	if err != nil {
		return nil, err
	}
	q, err := s.rt.Registry().Open(req.Queue)
	if err != nil {
		return nil, err
	}
	newID, err := q.Send(ctx, entry.Body)
	if err != nil {
		return nil, err
	}
	if err := store.Delete(ctx, req.Queue, msgID); err != nil {
		// The body is live again; a leftover entry only risks a second redrive.
		s.logger.Warn("redriven entry not removed",
			logpkg.Str("queue", req.Queue), logpkg.Str("id", req.ID), logpkg.Err(err))
	}
	s.logger.Info("redrove dead letter",
		logpkg.Str("queue", req.Queue), logpkg.Str("id", req.ID), logpkg.Str("new_id", newID.String()))
	return &RedriveResponse{ID: newID.String()}, nil
}

// DeleteDeadLetter discards a stored dead letter.
func (s *Service) DeleteDeadLetter(ctx context.Context, req *DeadLetterRequest) (*OKResponse, error) {
	msgID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.rt.DeadLetters().Delete(ctx, req.Queue, msgID); err != nil {
		return nil, err
	}
	return &OKResponse{OK: true}, nil
}

// CheckHealth reports whether the runtime is usable.
func (s *Service) CheckHealth(ctx context.Context) error {
	return s.rt.CheckHealth(ctx)
}

func parseID(raw string) (id.ID, error) {
	msgID, err := id.Parse(raw)
	if err != nil {
		return id.Zero, invalid("id %q: %v", raw, err)
	}
	return msgID, nil
}

func toMessage(m workqueue.Message) *Message {
	return &Message{
		ID:              m.ID.String(),
		Body:            m.Body,
		Receipt:         m.Receipt.String(),
		ReceiveCount:    m.ReceiveCount,
		EnqueuedAtMs:    m.EnqueuedAt.UnixMilli(),
		NextVisibleAtMs: m.NextVisibleAt.UnixMilli(),
	}
}
