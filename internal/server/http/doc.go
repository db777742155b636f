// Package httpserver is the JSON gateway over the queue service.
//
// Message bodies travel base64-encoded. Receive answers 204 when nothing
// arrived within the requested wait. Every response carries an
// X-Request-Id header, generated when the client did not send one.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := httpserver.New(workqueues.New(rt), logger, prometheus.DefaultGatherer)
//	_ = s.ListenAndServe(ctx, ":7080")
package httpserver
