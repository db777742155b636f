package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rzbill/floq/internal/deadletter"
	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
	"github.com/rzbill/floq/internal/workqueue"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "floq.v1.Queues"

// Empty is the request of methods that take no arguments.
type Empty struct{}

// queuesSvc adapts the workqueues service to gRPC status errors.
type queuesSvc struct {
	svc *workqueuesvc.Service
}

func (q *queuesSvc) listQueues(ctx context.Context, _ *Empty) (*workqueuesvc.ListQueuesResponse, error) {
	return q.svc.ListQueues(ctx)
}

// toStatus maps service errors to gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, workqueue.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, workqueue.ErrQueueNotFound), errors.Is(err, deadletter.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, workqueuesvc.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, workqueue.ErrClosed), errors.Is(err, deadletter.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// unary builds a MethodDesc that decodes Req, runs call through any
// interceptor and converts its error.
func unary[Req, Resp any](name string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(ctx, req.(*Req))
				if err != nil {
					return nil, toStatus(err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serviceDesc describes floq.v1.Queues over q.
func (q *queuesSvc) serviceDesc() *grpc.ServiceDesc {
	s := q.svc
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			unary("Send", s.Send),
			unary("Receive", s.Receive),
			unary("Acknowledge", s.Acknowledge),
			unary("ExtendVisibility", s.ExtendVisibility),
			unary("Release", s.Release),
			unary("Counts", s.Counts),
			unary("ListQueues", q.listQueues),
			unary("Purge", s.Purge),
			unary("ListDeadLetters", s.ListDeadLetters),
			unary("Redrive", s.Redrive),
			unary("DeleteDeadLetter", s.DeleteDeadLetter),
		},
		Metadata: "floq/v1/queues",
	}
}
