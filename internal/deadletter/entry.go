package deadletter

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rzbill/floq/internal/workqueue"
	"github.com/rzbill/floq/pkg/id"
)

var (
	// ErrNotFound is returned when a dead letter does not exist.
	ErrNotFound = errors.New("deadletter: not found")
	// ErrClosed is returned by a Store after Close.
	ErrClosed = errors.New("deadletter: store closed")
)

// Entry is a dead-lettered message as stored and forwarded.
type Entry struct {
	Queue        string    `json:"queue"`
	ID           id.ID     `json:"id"`
	Body         []byte    `json:"body"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
	DeadAt       time.Time `json:"deadAt"`
	ReceiveCount int       `json:"receiveCount"`
}

// FromMessage converts a queue snapshot into an Entry stamped with deadAt.
func FromMessage(msg workqueue.Message, deadAt time.Time) Entry {
	return Entry{
		Queue:        msg.Queue,
		ID:           msg.ID,
		Body:         msg.Body,
		EnqueuedAt:   msg.EnqueuedAt,
		DeadAt:       deadAt,
		ReceiveCount: msg.ReceiveCount,
	}
}

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(b, &e)
	return e, err
}

// Recorder receives the outcome of each forward. metrics.Collector
// satisfies it.
type Recorder interface {
	Forwarded(sink string, err error)
}

type nopRecorder struct{}

func (nopRecorder) Forwarded(string, error) {}
