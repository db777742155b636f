// Package runtime wires storage, dead-letter sinks and the queue registry
// into a single-node floq instance.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
//	defer rt.Close()
//	q, _ := rt.Registry().Open("orders")
//	_, _ = q.Send(ctx, []byte("hello"))
package runtime
