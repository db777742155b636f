package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	cfgpkg "github.com/rzbill/floq/internal/config"
	"github.com/rzbill/floq/internal/deadletter"
	"github.com/rzbill/floq/internal/metrics"
	pebblestore "github.com/rzbill/floq/internal/storage/pebble"
	"github.com/rzbill/floq/internal/workqueue"
	"github.com/rzbill/floq/pkg/id"
	"github.com/rzbill/floq/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
	Clock  clock.Clock
	// Metrics is shared by every queue and the store. Nil builds an
	// unregistered collector.
	Metrics *metrics.Collector

	// SQS and Redis override the clients built from Config, mainly for
	// tests. They are only consulted when some queue forwards there.
	SQS   deadletter.SQSAPI
	Redis deadletter.RedisLister
}

// Runtime wires storage, dead-letter sinks and the queue registry for a
// single-node instance.
type Runtime struct {
	config  cfgpkg.Config
	base    log.Logger
	logger  log.Logger
	clock   clock.Clock
	metrics *metrics.Collector
	ids     *id.Generator

	db       *pebblestore.DB
	store    *deadletter.Store
	sqs      deadletter.SQSAPI
	redis    deadletter.RedisLister
	closers  []io.Closer
	registry *workqueue.Registry

	// retention loop, running only when the store has a MaxAge
	stopRetention chan struct{}
	retentionDone chan struct{}
}

// Open validates the config, opens the dead-letter store, connects to any
// forwarding targets and creates the declared queues.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		config:  cfg,
		base:    opts.Logger,
		logger:  opts.Logger.WithComponent("runtime"),
		clock:   opts.Clock,
		metrics: opts.Metrics,
		ids:     id.NewGenerator(),
		sqs:     opts.SQS,
		redis:   opts.Redis,
	}

	dataDir := cfg.ResolvedDataDir()
	rt.db, err = pebblestore.Open(pebblestore.Options{DataDir: dataDir, Fsync: fsync, Metrics: opts.Metrics})
	if err != nil {
		return nil, err
	}
	rt.store = deadletter.NewStore(rt.db, deadletter.StoreOptions{
		MaxPerQueue: cfg.DeadLetterStore.MaxPerQueue,
		MaxAge:      cfg.DeadLetterStore.MaxAge.Duration,
		Clock:       opts.Clock,
		Logger:      opts.Logger,
	})

	if err := rt.connectForwarders(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}

	var factory workqueue.Factory
	if cfg.AllowAutoCreateQueues {
		factory = func(name string) (*workqueue.Queue, error) {
			qc, _ := rt.config.Queue(name)
			return rt.buildQueue(qc)
		}
	}
	rt.registry = workqueue.NewRegistry(factory)
	for _, qc := range cfg.Queues {
		q, err := rt.buildQueue(qc)
		if err == nil {
			err = rt.registry.Add(q)
		}
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("queue %s: %w", qc.Name, err)
		}
	}
	if age := cfg.DeadLetterStore.MaxAge.Duration; age > 0 {
		rt.startRetention(retentionInterval(age))
	}
	rt.logger.Info("runtime ready",
		log.Str("data_dir", dataDir),
		log.Int("queues", len(cfg.Queues)),
		log.Bool("auto_create", cfg.AllowAutoCreateQueues))
	return rt, nil
}

// connectForwarders builds the SQS and Redis clients if any queue that can
// exist needs them.
func (r *Runtime) connectForwarders(ctx context.Context) error {
	wantSQS, wantRedis := false, false
	check := func(dl cfgpkg.DeadLetterConfig) {
		wantSQS = wantSQS || dl.SQSQueueURL != ""
		wantRedis = wantRedis || dl.RedisKey != ""
	}
	for _, q := range r.config.Queues {
		check(q.DeadLetter)
	}
	if r.config.AllowAutoCreateQueues {
		check(r.config.DefaultQueue.DeadLetter)
	}

	if wantSQS && r.sqs == nil {
		client, err := deadletter.NewSQSClient(ctx, deadletter.AWSOptions{
			Region:   r.config.AWS.Region,
			Endpoint: r.config.AWS.Endpoint,
		})
		if err != nil {
			return err
		}
		r.sqs = client
	}
	if wantRedis && r.redis == nil {
		if r.config.Redis.Addr == "" {
			return errors.New("redis.addr is required when a queue forwards dead letters to redis")
		}
		client, err := deadletter.NewRedisClient(ctx, r.config.Redis.Addr)
		if err != nil {
			return err
		}
		r.redis = client
		r.closers = append(r.closers, client)
	}
	return nil
}

func (r *Runtime) buildQueue(qc cfgpkg.QueueConfig) (*workqueue.Queue, error) {
	var targets []deadletter.Target
	if qc.DeadLetter.Store {
		targets = append(targets, deadletter.Target{Name: "store", Sink: r.store})
	}
	if qc.DeadLetter.SQSQueueURL != "" {
		targets = append(targets, deadletter.Target{Name: "sqs", Sink: deadletter.NewSQSForwarder(r.sqs, qc.DeadLetter.SQSQueueURL)})
	}
	if qc.DeadLetter.RedisKey != "" {
		targets = append(targets, deadletter.Target{Name: "redis", Sink: deadletter.NewRedisForwarder(r.redis, qc.DeadLetter.RedisKey, qc.DeadLetter.RedisMaxLen)})
	}
	var sink workqueue.DeadLetterSink
	if len(targets) > 0 {
		sink = deadletter.NewMulti(r.metrics, targets...)
	}
	q, err := workqueue.New(workqueue.Options{
		Name:              qc.Name,
		VisibilityTimeout: qc.VisibilityTimeout.Duration,
		MaxReceiveCount:   qc.MaxReceiveCount,
		Clock:             r.clock,
		Logger:            r.base,
		DeadLetter:        sink,
		Observer:          r.metrics,
		IDs:               r.ids,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("queue created",
		log.Str("queue", qc.Name),
		log.Dur("visibility_timeout", qc.VisibilityTimeout.Duration),
		log.Int("max_receive_count", qc.MaxReceiveCount),
		log.Int("dead_letter_targets", len(targets)))
	return q, nil
}

// retentionInterval sweeps about four times per maxAge, clamped to
// [1s, 1m].
func retentionInterval(maxAge time.Duration) time.Duration {
	return min(max(maxAge/4, time.Second), time.Minute)
}

func (r *Runtime) startRetention(every time.Duration) {
	r.stopRetention = make(chan struct{})
	r.retentionDone = make(chan struct{})
	ticker := r.clock.Ticker(every)
	go func() {
		defer close(r.retentionDone)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopRetention:
				return
			case <-ticker.C:
				r.trimDeadLetters()
			}
		}
	}()
}

// trimDeadLetters drops aged-out entries for every registered queue.
func (r *Runtime) trimDeadLetters() {
	ctx := context.Background()
	for _, name := range r.registry.Names() {
		n, err := r.store.Trim(ctx, name, -1)
		if err != nil {
			r.logger.Warn("dead-letter retention failed", log.Str("queue", name), log.Err(err))
			continue
		}
		if n > 0 {
			r.logger.Debug("dead-letter retention", log.Str("queue", name), log.Int("removed", n))
		}
	}
}

// Close closes queues, forwarding clients and storage.
func (r *Runtime) Close() error {
	if r.stopRetention != nil {
		close(r.stopRetention)
		<-r.retentionDone
		r.stopRetention = nil
	}
	var errs error
	if r.registry != nil {
		errs = multierr.Append(errs, r.registry.Close())
	}
	// Queues stay receivable after Close, so dead letters they produce
	// must fail in the store rather than reach a closed DB.
	if r.store != nil {
		errs = multierr.Append(errs, r.store.Close())
	}
	for _, c := range r.closers {
		errs = multierr.Append(errs, c.Close())
	}
	r.closers = nil
	if r.db != nil {
		errs = multierr.Append(errs, r.db.Close())
		r.db = nil
	}
	return errs
}

// CheckHealth reports whether storage is usable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Registry returns the queue registry.
func (r *Runtime) Registry() *workqueue.Registry { return r.registry }

// DeadLetters returns the local dead-letter store.
func (r *Runtime) DeadLetters() *deadletter.Store { return r.store }

// Metrics returns the shared collector.
func (r *Runtime) Metrics() *metrics.Collector { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() log.Logger { return r.base }
