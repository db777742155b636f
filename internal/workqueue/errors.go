package workqueue

import "errors"

var (
	// ErrInvalidArgument reports a precondition violation at the call site,
	// e.g. a negative wait or extension.
	ErrInvalidArgument = errors.New("workqueue: invalid argument")

	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("workqueue: closed")

	// ErrQueueNotFound is returned by Registry lookups for unknown names.
	ErrQueueNotFound = errors.New("workqueue: queue not found")

	// ErrQueueExists is returned when creating a name that is taken.
	ErrQueueExists = errors.New("workqueue: queue already exists")
)
