package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	cfgpkg "github.com/rzbill/floq/internal/config"
	"github.com/rzbill/floq/internal/runtime"
	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

const bufSize = 1 << 20

func newTestConn(t *testing.T, mutate func(*cfgpkg.Config)) *grpc.ClientConn {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "never"
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := runtime.Open(context.Background(), runtime.Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	srv := New(workqueuesvc.New(rt), nil)
	lis := bufconn.Listen(bufSize)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHealthOverGRPC(t *testing.T) {
	conn := newTestConn(t, nil)
	ctx := testCtx(t)
	hc := healthpb.NewHealthClient(conn)

	res, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	res, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}

func TestQueueLifecycleOverGRPC(t *testing.T) {
	c := NewClient(newTestConn(t, nil))
	ctx := testCtx(t)

	sent, err := c.Send(ctx, &workqueuesvc.SendRequest{Queue: "orders", Body: []byte("hi")})
	require.NoError(t, err)
	require.NotEmpty(t, sent.ID)

	got, err := c.Receive(ctx, &workqueuesvc.ReceiveRequest{Queue: "orders"})
	require.NoError(t, err)
	require.NotNil(t, got.Message)
	assert.Equal(t, sent.ID, got.Message.ID)
	assert.Equal(t, []byte("hi"), got.Message.Body)

	ext, err := c.ExtendVisibility(ctx, &workqueuesvc.ExtendRequest{Queue: "orders", Receipt: got.Message.Receipt, ExtraMs: 100})
	require.NoError(t, err)
	assert.True(t, ext.OK)

	counts, err := c.Counts(ctx, &workqueuesvc.QueueRequest{Queue: "orders"})
	require.NoError(t, err)
	assert.Equal(t, workqueuesvc.CountsResponse{Visible: 0, InFlight: 1}, *counts)

	rel, err := c.Release(ctx, &workqueuesvc.ReceiptRequest{Queue: "orders", Receipt: got.Message.Receipt})
	require.NoError(t, err)
	assert.True(t, rel.OK)

	again, err := c.Receive(ctx, &workqueuesvc.ReceiveRequest{Queue: "orders"})
	require.NoError(t, err)
	require.NotNil(t, again.Message)
	assert.Equal(t, 2, again.Message.ReceiveCount)

	stale, err := c.Acknowledge(ctx, &workqueuesvc.ReceiptRequest{Queue: "orders", Receipt: got.Message.Receipt})
	require.NoError(t, err)
	assert.False(t, stale.OK)

	ack, err := c.Acknowledge(ctx, &workqueuesvc.ReceiptRequest{Queue: "orders", Receipt: again.Message.Receipt})
	require.NoError(t, err)
	assert.True(t, ack.OK)

	list, err := c.ListQueues(ctx)
	require.NoError(t, err)
	require.Len(t, list.Queues, 1)
	assert.Equal(t, "orders", list.Queues[0].Name)

	purged, err := c.Purge(ctx, &workqueuesvc.QueueRequest{Queue: "orders"})
	require.NoError(t, err)
	assert.Equal(t, 0, purged.Purged)
}

func TestReceiveEmptyOverGRPC(t *testing.T) {
	c := NewClient(newTestConn(t, nil))
	got, err := c.Receive(testCtx(t), &workqueuesvc.ReceiveRequest{Queue: "orders", WaitMs: 20})
	require.NoError(t, err)
	assert.Nil(t, got.Message)
}

func TestStatusCodesOverGRPC(t *testing.T) {
	c := NewClient(newTestConn(t, func(cfg *cfgpkg.Config) {
		cfg.AllowAutoCreateQueues = false
		cfg.Queues = []cfgpkg.QueueConfig{{
			Name:              "orders",
			VisibilityTimeout: cfgpkg.Duration{Duration: time.Second},
			MaxReceiveCount:   3,
		}}
	}))
	ctx := testCtx(t)

	_, err := c.Receive(ctx, &workqueuesvc.ReceiveRequest{Queue: "orders", WaitMs: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Send(ctx, &workqueuesvc.SendRequest{Queue: "missing", Body: []byte("x")})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.Redrive(ctx, &workqueuesvc.DeadLetterRequest{Queue: "orders", ID: "00000000000000000000000000000001"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.ListDeadLetters(ctx, &workqueuesvc.ListDeadLettersRequest{Queue: "orders", Filter: "size +"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLongPollHonoursDeadlineOverGRPC(t *testing.T) {
	c := NewClient(newTestConn(t, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Receive(ctx, &workqueuesvc.ReceiveRequest{Queue: "orders", WaitMs: 10000})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}
