package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays FLOQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FLOQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FLOQ_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("FLOQ_ALLOW_AUTO_CREATE_QUEUES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateQueues = b
		}
	}
	if v := os.Getenv("FLOQ_DEFAULT_VISIBILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefaultQueue.VisibilityTimeout = Duration{d}
		}
	}
	if v := os.Getenv("FLOQ_DEFAULT_MAX_RECEIVE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultQueue.MaxReceiveCount = n
		}
	}
	if v := os.Getenv("FLOQ_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("FLOQ_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("FLOQ_SEND_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.SendRatePerSec = f
		}
	}
	if v := os.Getenv("FLOQ_SEND_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.SendBurst = n
		}
	}
	if v := os.Getenv("FLOQ_MAX_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.MaxWait = Duration{d}
		}
	}
	if v := os.Getenv("FLOQ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FLOQ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FLOQ_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("FLOQ_AWS_ENDPOINT"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("FLOQ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}
