package transports

import (
	"context"

	"google.golang.org/grpc"

	grpcserver "github.com/rzbill/floq/internal/server/grpc"
	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// GrpcTransport implements QueuesTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

// call opens a connection for a single RPC and closes it afterwards.
func call[Resp any](ctx context.Context, t *GrpcTransport, fn func(*grpcserver.Client) (*Resp, error)) (*Resp, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	return fn(grpcserver.NewClient(conn))
}

func (t *GrpcTransport) Send(ctx context.Context, req *workqueuesvc.SendRequest) (*workqueuesvc.SendResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.SendResponse, error) { return c.Send(ctx, req) })
}

func (t *GrpcTransport) Receive(ctx context.Context, req *workqueuesvc.ReceiveRequest) (*workqueuesvc.ReceiveResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.ReceiveResponse, error) { return c.Receive(ctx, req) })
}

func (t *GrpcTransport) Acknowledge(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.OKResponse, error) { return c.Acknowledge(ctx, req) })
}

func (t *GrpcTransport) ExtendVisibility(ctx context.Context, req *workqueuesvc.ExtendRequest) (*workqueuesvc.OKResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.OKResponse, error) { return c.ExtendVisibility(ctx, req) })
}

func (t *GrpcTransport) Release(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.OKResponse, error) { return c.Release(ctx, req) })
}

func (t *GrpcTransport) Counts(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.CountsResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.CountsResponse, error) { return c.Counts(ctx, req) })
}

func (t *GrpcTransport) ListQueues(ctx context.Context) (*workqueuesvc.ListQueuesResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.ListQueuesResponse, error) { return c.ListQueues(ctx) })
}

func (t *GrpcTransport) Purge(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.PurgeResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.PurgeResponse, error) { return c.Purge(ctx, req) })
}

func (t *GrpcTransport) ListDeadLetters(ctx context.Context, req *workqueuesvc.ListDeadLettersRequest) (*workqueuesvc.ListDeadLettersResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.ListDeadLettersResponse, error) { return c.ListDeadLetters(ctx, req) })
}

func (t *GrpcTransport) Redrive(ctx context.Context, req *workqueuesvc.DeadLetterRequest) (*workqueuesvc.RedriveResponse, error) {
	return call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.RedriveResponse, error) { return c.Redrive(ctx, req) })
}

func (t *GrpcTransport) DeleteDeadLetter(ctx context.Context, req *workqueuesvc.DeadLetterRequest) error {
	_, err := call(ctx, t, func(c *grpcserver.Client) (*workqueuesvc.OKResponse, error) { return c.DeleteDeadLetter(ctx, req) })
	return err
}
