package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/floq/internal/config"
	"github.com/rzbill/floq/internal/deadletter"
	"github.com/rzbill/floq/internal/workqueue"
	"github.com/rzbill/floq/pkg/id"
)

type fakeSQS struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, *in.QueueUrl)
	return &sqs.SendMessageOutput{}, nil
}

type fakeRedis struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeRedis) LPush(_ context.Context, key string, _ ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) LTrim(context.Context, string, int64, int64) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func testConfig(t *testing.T) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Fsync = "never"
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(context.Background(), Options{Config: testConfig(t)})
	require.NoError(t, err)
	require.NoError(t, rt.CheckHealth(context.Background()))
	require.NoError(t, rt.Close())
	require.Error(t, rt.CheckHealth(context.Background()))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues = []cfgpkg.QueueConfig{{Name: "bad"}}
	_, err := Open(context.Background(), Options{Config: cfg})
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Fsync = "sometimes"
	_, err = Open(context.Background(), Options{Config: cfg})
	require.Error(t, err)
}

func TestDeclaredQueuesAndAutoCreate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues = []cfgpkg.QueueConfig{{
		Name:              "orders",
		VisibilityTimeout: cfgpkg.Duration{Duration: time.Minute},
		MaxReceiveCount:   2,
	}}
	rt, err := Open(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	q, err := rt.Registry().Get("orders")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, q.VisibilityTimeout())

	adhoc, err := rt.Registry().Open("adhoc")
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultQueue.MaxReceiveCount, adhoc.MaxReceiveCount())
	assert.Equal(t, []string{"adhoc", "orders"}, rt.Registry().Names())
}

func TestAutoCreateDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowAutoCreateQueues = false
	rt, err := Open(context.Background(), Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	_, err = rt.Registry().Open("adhoc")
	require.ErrorIs(t, err, workqueue.ErrQueueNotFound)
}

func TestRedisForwardingNeedsAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultQueue.DeadLetter.RedisKey = "dlq"
	_, err := Open(context.Background(), Options{Config: cfg})
	require.Error(t, err)
}

func TestDeadLettersReachEveryConfiguredSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues = []cfgpkg.QueueConfig{{
		Name:              "jobs",
		VisibilityTimeout: cfgpkg.Duration{Duration: time.Second},
		MaxReceiveCount:   1,
		DeadLetter: cfgpkg.DeadLetterConfig{
			Store:       true,
			SQSQueueURL: "https://sqs.local/jobs-dlq",
			RedisKey:    "dlq:{queue}",
		},
	}}
	mock := clock.NewMock()
	sqsClient := &fakeSQS{}
	redisClient := &fakeRedis{}
	rt, err := Open(context.Background(), Options{Config: cfg, Clock: mock, SQS: sqsClient, Redis: redisClient})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	ctx := context.Background()
	q, err := rt.Registry().Get("jobs")
	require.NoError(t, err)
	msgID, err := q.Send(ctx, []byte("work"))
	require.NoError(t, err)
	_, ok := q.Receive(ctx)
	require.True(t, ok)
	mock.Add(time.Second)
	_, ok = q.Receive(ctx)
	require.False(t, ok)

	stored, err := rt.DeadLetters().List("jobs", deadletter.ListOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, msgID, stored[0].ID)
	assert.Equal(t, []string{"https://sqs.local/jobs-dlq"}, sqsClient.urls)
	assert.Equal(t, []string{"dlq:jobs"}, redisClient.keys)
}

func TestDeadLetterAfterCloseDoesNotReachStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues = []cfgpkg.QueueConfig{{
		Name:              "jobs",
		VisibilityTimeout: cfgpkg.Duration{Duration: time.Minute},
		MaxReceiveCount:   1,
		DeadLetter:        cfgpkg.DeadLetterConfig{Store: true},
	}}
	mock := clock.NewMock()
	rt, err := Open(context.Background(), Options{Config: cfg, Clock: mock})
	require.NoError(t, err)

	ctx := context.Background()
	q, err := rt.Registry().Get("jobs")
	require.NoError(t, err)
	_, err = q.Send(ctx, []byte("work"))
	require.NoError(t, err)
	_, ok := q.Receive(ctx)
	require.True(t, ok)
	mock.Add(time.Minute)
	require.NoError(t, rt.Close())

	require.NotPanics(t, func() {
		_, ok = q.Receive(ctx)
	})
	assert.False(t, ok)
	_, err = rt.DeadLetters().Stats("jobs")
	assert.ErrorIs(t, err, deadletter.ErrClosed)
}

func TestRetentionTrimsAgedDeadLetters(t *testing.T) {
	mock := clock.NewMock()
	cfg := testConfig(t)
	cfg.DeadLetterStore.MaxAge = cfgpkg.Duration{Duration: 10 * time.Second}
	cfg.Queues = []cfgpkg.QueueConfig{{
		Name:              "orders",
		VisibilityTimeout: cfgpkg.Duration{Duration: time.Minute},
		MaxReceiveCount:   1,
		DeadLetter:        cfgpkg.DeadLetterConfig{Store: true},
	}}
	rt, err := Open(context.Background(), Options{Config: cfg, Clock: mock})
	require.NoError(t, err)
	defer rt.Close()

	store := rt.DeadLetters()
	require.NoError(t, store.Put(context.Background(), deadletter.Entry{
		Queue:  "orders",
		ID:     id.NewGenerator().Next(),
		Body:   []byte("old"),
		DeadAt: mock.Now(),
	}))
	stats, err := store.Stats("orders")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Count)

	require.Eventually(t, func() bool {
		mock.Add(3 * time.Second)
		stats, err := store.Stats("orders")
		return err == nil && stats.Count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetentionInterval(t *testing.T) {
	assert.Equal(t, time.Second, retentionInterval(time.Second))
	assert.Equal(t, 15*time.Second, retentionInterval(time.Minute))
	assert.Equal(t, time.Minute, retentionInterval(24*time.Hour))
}
