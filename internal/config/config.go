package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/floq/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds the dead-letter store. Empty means DefaultDataDir().
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is one of always|interval|never.
	Fsync string `json:"fsync" yaml:"fsync"`

	AllowAutoCreateQueues bool          `json:"allowAutoCreateQueues" yaml:"allowAutoCreateQueues"`
	DefaultQueue          QueueConfig   `json:"defaultQueue" yaml:"defaultQueue"`
	Queues                []QueueConfig `json:"queues" yaml:"queues"`

	DeadLetterStore DeadLetterStoreConfig `json:"deadLetterStore" yaml:"deadLetterStore"`

	Server ServerConfig `json:"server" yaml:"server"`
	Log    log.Config   `json:"log" yaml:"log"`
	AWS    AWSConfig    `json:"aws" yaml:"aws"`
	Redis  RedisConfig  `json:"redis" yaml:"redis"`
}

// QueueConfig declares one queue. Name is ignored for DefaultQueue.
type QueueConfig struct {
	Name              string           `json:"name" yaml:"name"`
	VisibilityTimeout Duration         `json:"visibilityTimeout" yaml:"visibilityTimeout"`
	MaxReceiveCount   int              `json:"maxReceiveCount" yaml:"maxReceiveCount"`
	DeadLetter        DeadLetterConfig `json:"deadLetter" yaml:"deadLetter"`
}

// DeadLetterConfig picks the sinks a queue's exhausted messages go to.
type DeadLetterConfig struct {
	// Store keeps dead letters in the local store for listing and redrive.
	Store bool `json:"store" yaml:"store"`
	// SQSQueueURL forwards dead letters to an SQS queue.
	SQSQueueURL string `json:"sqsQueueURL" yaml:"sqsQueueURL"`
	// RedisKey forwards dead letters to a Redis list; "{queue}" expands to
	// the queue name.
	RedisKey    string `json:"redisKey" yaml:"redisKey"`
	RedisMaxLen int64  `json:"redisMaxLen" yaml:"redisMaxLen"`
}

// DeadLetterStoreConfig bounds the local dead-letter store.
type DeadLetterStoreConfig struct {
	MaxPerQueue int      `json:"maxPerQueue" yaml:"maxPerQueue"`
	MaxAge      Duration `json:"maxAge" yaml:"maxAge"`
}

// ServerConfig configures the network listeners.
type ServerConfig struct {
	GRPCAddr string `json:"grpcAddr" yaml:"grpcAddr"`
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// SendRatePerSec throttles sends across all transports; zero disables.
	SendRatePerSec float64 `json:"sendRatePerSec" yaml:"sendRatePerSec"`
	SendBurst      int     `json:"sendBurst" yaml:"sendBurst"`
	// MaxWait caps the long-poll wait a client may request.
	MaxWait Duration `json:"maxWait" yaml:"maxWait"`
	// MaxBodyBytes caps a message body.
	MaxBodyBytes int `json:"maxBodyBytes" yaml:"maxBodyBytes"`
}

// AWSConfig configures the SQS client used by dead-letter forwarding.
type AWSConfig struct {
	Region   string `json:"region" yaml:"region"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// RedisConfig configures the Redis client used by dead-letter forwarding.
type RedisConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Fsync:                 "interval",
		AllowAutoCreateQueues: true,
		DefaultQueue: QueueConfig{
			VisibilityTimeout: Duration{30e9},
			MaxReceiveCount:   5,
			DeadLetter:        DeadLetterConfig{Store: true},
		},
		DeadLetterStore: DeadLetterStoreConfig{MaxPerQueue: 10000},
		Server: ServerConfig{
			GRPCAddr:     ":7070",
			HTTPAddr:     ":7080",
			SendBurst:    100,
			MaxWait:      Duration{20e9},
			MaxBodyBytes: 256 << 10,
		},
		Log: log.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// Default(). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports every problem in cfg at once.
func (c Config) Validate() error {
	var errs error
	seen := make(map[string]bool, len(c.Queues))
	for i, q := range c.Queues {
		if q.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("queues[%d]: name is required", i))
		} else if seen[q.Name] {
			errs = multierr.Append(errs, fmt.Errorf("queues[%d]: duplicate name %q", i, q.Name))
		}
		seen[q.Name] = true
		errs = multierr.Append(errs, q.validate(fmt.Sprintf("queues[%d]", i)))
	}
	if c.AllowAutoCreateQueues {
		errs = multierr.Append(errs, c.DefaultQueue.validate("defaultQueue"))
	}
	if c.Server.SendRatePerSec < 0 {
		errs = multierr.Append(errs, errors.New("server.sendRatePerSec must not be negative"))
	}
	if c.Server.MaxWait.Duration < 0 {
		errs = multierr.Append(errs, errors.New("server.maxWait must not be negative"))
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		errs = multierr.Append(errs, fmt.Errorf("fsync must be always|interval|never, got %q", c.Fsync))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format must be text|json, got %q", c.Log.Format))
	}
	return errs
}

func (q QueueConfig) validate(path string) error {
	var errs error
	if q.VisibilityTimeout.Duration <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s.visibilityTimeout must be positive", path))
	}
	if q.MaxReceiveCount < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%s.maxReceiveCount must be >= 1", path))
	}
	return errs
}

// Queue returns the declared settings for name, or DefaultQueue renamed when
// name is not declared.
func (c Config) Queue(name string) (QueueConfig, bool) {
	for _, q := range c.Queues {
		if q.Name == name {
			return q, true
		}
	}
	q := c.DefaultQueue
	q.Name = name
	return q, false
}
