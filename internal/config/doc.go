// Package config loads floq's runtime configuration: the queues to create,
// where their dead letters go, listener addresses and logging.
//
// Example:
//
//	cfg, err := config.Load("/etc/floq.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
package config
