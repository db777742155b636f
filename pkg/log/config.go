package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Config declares a logger: level name and format (text|json).
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ApplyConfig builds a console logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var f Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		f = &TextFormatter{}
	case "json":
		f = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	return NewLogger(WithLevel(lvl), WithFormatter(f), WithOutput(NewConsoleOutput())), nil
}

// RedirectStdLog routes the standard library logger through l at info level.
// The returned function restores the previous behaviour.
func RedirectStdLog(l Logger) func() {
	bl, ok := l.(*BaseLogger)
	if !ok {
		return func() {}
	}
	return zap.RedirectStdLog(bl.zl)
}
