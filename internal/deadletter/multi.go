package deadletter

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/rzbill/floq/internal/workqueue"
)

// Target is a named sink inside a Multi.
type Target struct {
	Name string
	Sink workqueue.DeadLetterSink
}

// Multi delivers each dead letter to every target in order. One target
// failing does not stop the others; the errors are combined.
type Multi struct {
	targets  []Target
	recorder Recorder
}

// NewMulti builds a fan-out sink. rec may be nil.
func NewMulti(rec Recorder, targets ...Target) *Multi {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Multi{targets: targets, recorder: rec}
}

// Len reports the number of targets.
func (m *Multi) Len() int { return len(m.targets) }

// OnDeadLetter implements workqueue.DeadLetterSink.
func (m *Multi) OnDeadLetter(ctx context.Context, msg workqueue.Message) error {
	var errs error
	for _, t := range m.targets {
		err := t.Sink.OnDeadLetter(ctx, msg)
		m.recorder.Forwarded(t.Name, err)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return errs
}
