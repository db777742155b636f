package workqueues

// SendRequest enqueues one message. Body is base64 in JSON.
type SendRequest struct {
	Queue string `json:"queue"`
	Body  []byte `json:"body"`
}

// SendResponse carries the new message id.
type SendResponse struct {
	ID string `json:"id"`
}

// ReceiveRequest asks for one message, optionally long-polling for WaitMs.
type ReceiveRequest struct {
	Queue  string `json:"queue"`
	WaitMs int64  `json:"waitMs"`
}

// Message is a delivered message as seen by clients.
type Message struct {
	ID              string `json:"id"`
	Body            []byte `json:"body"`
	Receipt         string `json:"receipt"`
	ReceiveCount    int    `json:"receiveCount"`
	EnqueuedAtMs    int64  `json:"enqueuedAtMs"`
	NextVisibleAtMs int64  `json:"nextVisibleAtMs"`
}

// ReceiveResponse holds the message, or nil when none was available.
type ReceiveResponse struct {
	Message *Message `json:"message,omitempty"`
}

// ReceiptRequest identifies a delivery for Acknowledge and Release.
type ReceiptRequest struct {
	Queue   string `json:"queue"`
	Receipt string `json:"receipt"`
}

// ExtendRequest pushes a delivery's deadline out by ExtraMs.
type ExtendRequest struct {
	Queue   string `json:"queue"`
	Receipt string `json:"receipt"`
	ExtraMs int64  `json:"extraMs"`
}

// OKResponse reports whether a receipt was honoured.
type OKResponse struct {
	OK bool `json:"ok"`
}

// QueueRequest names a queue.
type QueueRequest struct {
	Queue string `json:"queue"`
}

// CountsResponse mirrors workqueue.Counts.
type CountsResponse struct {
	Visible  int `json:"visible"`
	InFlight int `json:"inFlight"`
}

// QueueInfo describes one registered queue.
type QueueInfo struct {
	Name                string `json:"name"`
	VisibilityTimeoutMs int64  `json:"visibilityTimeoutMs"`
	MaxReceiveCount     int    `json:"maxReceiveCount"`
	Visible             int    `json:"visible"`
	InFlight            int    `json:"inFlight"`
}

// ListQueuesResponse lists queues sorted by name.
type ListQueuesResponse struct {
	Queues []QueueInfo `json:"queues"`
}

// PurgeResponse reports how many messages were dropped.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

// ListDeadLettersRequest pages through stored dead letters. Filter is a CEL
// expression over the entry.
type ListDeadLettersRequest struct {
	Queue  string `json:"queue"`
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// DeadLetter is a stored dead letter as seen by clients.
type DeadLetter struct {
	ID           string `json:"id"`
	Body         []byte `json:"body"`
	ReceiveCount int    `json:"receiveCount"`
	EnqueuedAtMs int64  `json:"enqueuedAtMs"`
	DeadAtMs     int64  `json:"deadAtMs"`
}

// ListDeadLettersResponse lists dead letters newest first.
type ListDeadLettersResponse struct {
	Entries []DeadLetter `json:"entries"`
	Stored  int64        `json:"stored"`
}

// DeadLetterRequest identifies one stored dead letter.
type DeadLetterRequest struct {
	Queue string `json:"queue"`
	ID    string `json:"id"`
}

// RedriveResponse carries the id of the re-sent message.
type RedriveResponse struct {
	ID string `json:"id"`
}
