// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// QueuesTransport abstracts the transport used by the CLI (HTTP or gRPC).
// Receive returns a nil message when none arrived within the wait.
type QueuesTransport interface {
	Send(ctx context.Context, req *workqueuesvc.SendRequest) (*workqueuesvc.SendResponse, error)
	Receive(ctx context.Context, req *workqueuesvc.ReceiveRequest) (*workqueuesvc.ReceiveResponse, error)
	Acknowledge(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error)
	ExtendVisibility(ctx context.Context, req *workqueuesvc.ExtendRequest) (*workqueuesvc.OKResponse, error)
	Release(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error)
	Counts(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.CountsResponse, error)
	ListQueues(ctx context.Context) (*workqueuesvc.ListQueuesResponse, error)
	Purge(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.PurgeResponse, error)
	ListDeadLetters(ctx context.Context, req *workqueuesvc.ListDeadLettersRequest) (*workqueuesvc.ListDeadLettersResponse, error)
	Redrive(ctx context.Context, req *workqueuesvc.DeadLetterRequest) (*workqueuesvc.RedriveResponse, error)
	DeleteDeadLetter(ctx context.Context, req *workqueuesvc.DeadLetterRequest) error
}
