package deadletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/floq/internal/storage/pebble"
	"github.com/rzbill/floq/internal/workqueue"
	"github.com/rzbill/floq/pkg/id"
	"github.com/rzbill/floq/pkg/log"
)

// StoreOptions configures retention for a Store.
type StoreOptions struct {
	// MaxPerQueue caps stored entries per queue; the oldest are trimmed.
	// Zero means 10000.
	MaxPerQueue int
	// MaxAge hides and trims entries older than this. Zero keeps forever.
	MaxAge time.Duration

	Clock  clock.Clock
	Logger log.Logger
}

// Store keeps dead letters in Pebble so operators can inspect and redrive
// them after the process restarts.
type Store struct {
	db          *pebblestore.DB
	clock       clock.Clock
	logger      log.Logger
	maxPerQueue int
	maxAge      time.Duration

	// mu serializes the read-modify-write of per-queue stats. Readers hold
	// it shared so Close waits for them before the DB goes away.
	mu     sync.RWMutex
	closed bool
}

// NewStore wraps db.
func NewStore(db *pebblestore.DB, opts StoreOptions) *Store {
	if opts.MaxPerQueue <= 0 {
		opts.MaxPerQueue = 10000
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	return &Store{
		db:          db,
		clock:       opts.Clock,
		logger:      opts.Logger.WithComponent("deadletter-store"),
		maxPerQueue: opts.MaxPerQueue,
		maxAge:      opts.MaxAge,
	}
}

// OnDeadLetter implements workqueue.DeadLetterSink.
func (s *Store) OnDeadLetter(ctx context.Context, msg workqueue.Message) error {
	return s.Put(ctx, FromMessage(msg, s.clock.Now()))
}

// Put stores e and trims the queue back to its retention limit.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if err := workqueue.ValidateName(e.Queue); err != nil {
		return err
	}
	value, err := encodeEntry(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	key := entryKey(e.Queue, e.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	stats, err := s.statsLocked(e.Queue)
	if err != nil {
		return err
	}
	prev, err := s.db.Get(key)
	switch {
	case err == nil:
		stats.Bytes -= int64(len(prev))
	case errors.Is(err, pebble.ErrNotFound):
		stats.Count++
	default:
		return fmt.Errorf("get entry: %w", err)
	}
	stats.Bytes += int64(len(value))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	if err := b.Set(metaKey(e.Queue), encodeStats(stats), nil); err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}

	if stats.Count > int64(s.maxPerQueue) {
		if _, err := s.trimLocked(ctx, e.Queue, s.maxPerQueue); err != nil {
			s.logger.Warn("trim failed", log.Str("queue", e.Queue), log.Err(err))
		}
	}
	return nil
}

// Get returns one entry.
func (s *Store) Get(queue string, msgID id.ID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, ErrClosed
	}
	raw, err := s.db.Get(entryKey(queue, msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, queue, msgID)
	}
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(raw)
}

// Delete removes one entry. Deleting a missing entry returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, queue string, msgID id.ID) error {
	key := entryKey(queue, msgID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, queue, msgID)
	}
	if err != nil {
		return err
	}
	stats, err := s.statsLocked(queue)
	if err != nil {
		return err
	}
	stats.Count--
	stats.Bytes -= int64(len(prev))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	if err := b.Set(metaKey(queue), encodeStats(stats), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// ListOptions narrows List.
type ListOptions struct {
	// Limit caps the result; zero means 100, values above 1000 are clamped.
	Limit int
	// Filter, when non-nil, keeps only matching entries.
	Filter *Filter
}

// List returns a queue's dead letters, newest first.
func (s *Store) List(queue string, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]Entry, 0, min(limit, 64))
	var decodeErr error
	err := s.db.ScanPrefix(entryPrefix(queue), true, func(_, value []byte) bool {
		e, err := decodeEntry(value)
		if err != nil {
			decodeErr = err
			return true
		}
		if s.maxAge > 0 && now.Sub(e.DeadAt) > s.maxAge {
			return true
		}
		if opts.Filter.Match(e, now) {
			out = append(out, e)
		}
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		s.logger.Warn("skipped undecodable entries", log.Str("queue", queue), log.Err(decodeErr))
	}
	return out, nil
}

// Stats reports the stored count and byte total for queue.
func (s *Store) Stats(queue string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	return s.statsLocked(queue)
}

// Trim removes the oldest entries beyond keep, plus any older than MaxAge.
// It returns the number removed.
func (s *Store) Trim(ctx context.Context, queue string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.trimLocked(ctx, queue, keep)
}

// Close waits for in-progress calls and makes later ones fail with
// ErrClosed. It does not close the underlying DB.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) statsLocked(queue string) (Stats, error) {
	raw, err := s.db.Get(metaKey(queue))
	if errors.Is(err, pebble.ErrNotFound) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, err
	}
	return decodeStats(raw)
}

func (s *Store) trimLocked(ctx context.Context, queue string, keep int) (int, error) {
	if keep < 0 {
		keep = s.maxPerQueue
	}
	type kv struct {
		key  []byte
		size int
		old  bool
	}
	now := s.clock.Now()
	var all []kv
	err := s.db.ScanPrefix(entryPrefix(queue), false, func(k, v []byte) bool {
		item := kv{key: append([]byte(nil), k...), size: len(v)}
		if s.maxAge > 0 {
			if e, err := decodeEntry(v); err == nil && now.Sub(e.DeadAt) > s.maxAge {
				item.old = true
			}
		}
		all = append(all, item)
		return true
	})
	if err != nil {
		return 0, err
	}

	excess := len(all) - keep
	b := s.db.NewBatch()
	defer b.Close()
	removed, freed := 0, 0
	for i, item := range all {
		if i >= excess && !item.old {
			continue
		}
		if err := b.Delete(item.key, nil); err != nil {
			return 0, err
		}
		removed++
		freed += item.size
	}
	if removed == 0 {
		return 0, nil
	}

	stats, err := s.statsLocked(queue)
	if err != nil {
		return 0, err
	}
	stats.Count = int64(len(all) - removed)
	stats.Bytes -= int64(freed)
	if stats.Bytes < 0 {
		stats.Bytes = 0
	}
	if err := b.Set(metaKey(queue), encodeStats(stats), nil); err != nil {
		return 0, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("commit trim: %w", err)
	}
	s.logger.Debug("trimmed dead letters", log.Str("queue", queue), log.Int("removed", removed))
	return removed, nil
}
