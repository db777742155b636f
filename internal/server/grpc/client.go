package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// Client calls floq.v1.Queues over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Send(ctx context.Context, req *workqueuesvc.SendRequest, opts ...grpc.CallOption) (*workqueuesvc.SendResponse, error) {
	return invoke[workqueuesvc.SendResponse](ctx, c, "Send", req, opts)
}

func (c *Client) Receive(ctx context.Context, req *workqueuesvc.ReceiveRequest, opts ...grpc.CallOption) (*workqueuesvc.ReceiveResponse, error) {
	return invoke[workqueuesvc.ReceiveResponse](ctx, c, "Receive", req, opts)
}

func (c *Client) Acknowledge(ctx context.Context, req *workqueuesvc.ReceiptRequest, opts ...grpc.CallOption) (*workqueuesvc.OKResponse, error) {
	return invoke[workqueuesvc.OKResponse](ctx, c, "Acknowledge", req, opts)
}

func (c *Client) ExtendVisibility(ctx context.Context, req *workqueuesvc.ExtendRequest, opts ...grpc.CallOption) (*workqueuesvc.OKResponse, error) {
	return invoke[workqueuesvc.OKResponse](ctx, c, "ExtendVisibility", req, opts)
}

func (c *Client) Release(ctx context.Context, req *workqueuesvc.ReceiptRequest, opts ...grpc.CallOption) (*workqueuesvc.OKResponse, error) {
	return invoke[workqueuesvc.OKResponse](ctx, c, "Release", req, opts)
}

func (c *Client) Counts(ctx context.Context, req *workqueuesvc.QueueRequest, opts ...grpc.CallOption) (*workqueuesvc.CountsResponse, error) {
	return invoke[workqueuesvc.CountsResponse](ctx, c, "Counts", req, opts)
}

func (c *Client) ListQueues(ctx context.Context, opts ...grpc.CallOption) (*workqueuesvc.ListQueuesResponse, error) {
	return invoke[workqueuesvc.ListQueuesResponse](ctx, c, "ListQueues", &Empty{}, opts)
}

func (c *Client) Purge(ctx context.Context, req *workqueuesvc.QueueRequest, opts ...grpc.CallOption) (*workqueuesvc.PurgeResponse, error) {
	return invoke[workqueuesvc.PurgeResponse](ctx, c, "Purge", req, opts)
}

func (c *Client) ListDeadLetters(ctx context.Context, req *workqueuesvc.ListDeadLettersRequest, opts ...grpc.CallOption) (*workqueuesvc.ListDeadLettersResponse, error) {
	return invoke[workqueuesvc.ListDeadLettersResponse](ctx, c, "ListDeadLetters", req, opts)
}

func (c *Client) Redrive(ctx context.Context, req *workqueuesvc.DeadLetterRequest, opts ...grpc.CallOption) (*workqueuesvc.RedriveResponse, error) {
	return invoke[workqueuesvc.RedriveResponse](ctx, c, "Redrive", req, opts)
}

func (c *Client) DeleteDeadLetter(ctx context.Context, req *workqueuesvc.DeadLetterRequest, opts ...grpc.CallOption) (*workqueuesvc.OKResponse, error) {
	return invoke[workqueuesvc.OKResponse](ctx, c, "DeleteDeadLetter", req, opts)
}
