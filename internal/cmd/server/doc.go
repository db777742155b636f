// Package serverrun exposes the Run entrypoint used by `floq server start`
// to load configuration, open the runtime and serve gRPC and HTTP until
// the context is cancelled.
//
// Example:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	_ = serverrun.Run(ctx, serverrun.Options{ConfigPath: "floq.yaml"})
package serverrun
