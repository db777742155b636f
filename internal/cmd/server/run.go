package serverrun

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/floq/internal/config"
	"github.com/rzbill/floq/internal/metrics"
	"github.com/rzbill/floq/internal/runtime"
	grpcserver "github.com/rzbill/floq/internal/server/grpc"
	httpserver "github.com/rzbill/floq/internal/server/http"
	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
	logpkg "github.com/rzbill/floq/pkg/log"
)

// Options are the command-line inputs to Run. Non-empty fields override
// the config file and FLOQ_* environment.
type Options struct {
	// ConfigPath is an optional JSON or YAML file.
	ConfigPath string

	DataDir   string
	GRPCAddr  string
	HTTPAddr  string
	Fsync     string
	LogLevel  string
	LogFormat string

	// Ready, if set, receives the bound addresses once both servers are
	// listening.
	Ready func(grpcAddr, httpAddr net.Addr)
}

// LoadConfig layers defaults, the config file, the environment and opts,
// then validates the result.
func LoadConfig(opts Options) (cfgpkg.Config, error) {
	cfg := cfgpkg.Default()
	if opts.ConfigPath != "" {
		loaded, err := cfgpkg.Load(opts.ConfigPath)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfg = loaded
	}
	cfgpkg.FromEnv(&cfg)

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.DataDir, opts.DataDir)
	set(&cfg.Server.GRPCAddr, opts.GRPCAddr)
	set(&cfg.Server.HTTPAddr, opts.HTTPAddr)
	set(&cfg.Fsync, opts.Fsync)
	set(&cfg.Log.Level, opts.LogLevel)
	set(&cfg.Log.Format, opts.LogFormat)

	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

// Run starts the gRPC and HTTP servers and blocks until ctx is cancelled or
// either server fails.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		return err
	}
	// Pebble logs through the standard library logger.
	restore := logpkg.RedirectStdLog(logger)
	defer restore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt, err := runtime.Open(ctx, runtime.Options{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(reg),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close failed", logpkg.Err(err))
		}
	}()

	svc := workqueuesvc.New(rt)
	gsrv := grpcserver.New(svc, logger)
	hsrv := httpserver.New(svc, logger, reg)

	var lc net.ListenConfig
	glis, err := lc.Listen(ctx, "tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	hlis, err := lc.Listen(ctx, "tcp", cfg.Server.HTTPAddr)
	if err != nil {
		_ = glis.Close()
		return fmt.Errorf("http listen: %w", err)
	}

	logger.Info("starting floq server",
		logpkg.Str("grpc", glis.Addr().String()),
		logpkg.Str("http", hlis.Addr().String()),
		logpkg.Str("data_dir", cfg.ResolvedDataDir()),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)
	if opts.Ready != nil {
		opts.Ready(glis.Addr(), hlis.Addr())
	}

	// Servers are stopped before the deferred runtime close.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gsrv.Serve(gctx, glis) })
	g.Go(func() error { return hsrv.Serve(gctx, hlis) })
	err = g.Wait()
	logger.Info("floq server stopped")
	return err
}
