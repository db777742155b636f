package workqueue

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var queueNameRE = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,80}$`)

// ValidateName reports whether name is usable as a queue name: 1 to 80
// characters from [A-Za-z0-9_.-].
func ValidateName(name string) error {
	if !queueNameRE.MatchString(name) {
		return fmt.Errorf("%w: invalid queue name %q", ErrInvalidArgument, name)
	}
	return nil
}

// Factory builds the queue for name. Registry calls it at most once per
// name, outside its own lock.
type Factory func(name string) (*Queue, error)

// Registry holds named queues. Queues registered up front are always
// available; with a Factory set, unknown names are created on first use.
type Registry struct {
	mu      sync.RWMutex
	queues  map[string]*Queue
	factory Factory
}

// NewRegistry returns an empty registry. factory may be nil, in which case
// lookups of unknown names fail with ErrQueueNotFound.
func NewRegistry(factory Factory) *Registry {
	return &Registry{queues: make(map[string]*Queue), factory: factory}
}

// Add registers q under its name.
func (r *Registry) Add(q *Queue) error {
	if err := ValidateName(q.Name()); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[q.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrQueueExists, q.Name())
	}
	r.queues[q.Name()] = q
	return nil
}

// Get returns the named queue without creating it.
func (r *Registry) Get(name string) (*Queue, error) {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}
	return q, nil
}

// Open returns the named queue, creating it through the factory if needed.
func (r *Registry) Open(name string) (*Queue, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if q, err := r.Get(name); err == nil || r.factory == nil {
		return q, err
	}
	q, err := r.factory(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.queues[name]; ok {
		// Lost a creation race; keep the first.
		_ = q.Close()
		return existing, nil
	}
	r.queues[name] = q
	return q, nil
}

// Names lists registered queues in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for n := range r.queues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes every queue.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.queues {
		_ = q.Close()
	}
	return nil
}
