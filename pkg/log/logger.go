package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZapLevel(l zapcore.Level) Level {
	switch l {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Context keys for propagating logging context
const (
	RequestIDKey = "request_id"
	ComponentKey = "component"
	OperationKey = "operation"
)

type ctxKey string

// ContextWithRequestID stores a request id that WithContext will pick up.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey(RequestIDKey), requestID)
}

// Logger defines the core logging interface for floq components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})

	// With adds multiple fields to the logger.
	With(fields ...Field) Logger

	// WithError attaches err under the "error" key.
	WithError(err error) Logger

	// WithContext adds request context to the Logger.
	WithContext(ctx context.Context) Logger

	// WithComponent tags logs with a component name.
	WithComponent(component string) Logger

	// SetLevel sets the minimum log level. Loggers derived with With share it.
	SetLevel(level Level)

	// GetLevel returns the current minimum log level.
	GetLevel() Level
}

// Formatter selects how entries are encoded.
type Formatter interface {
	encoder() zapcore.Encoder
}

// TextFormatter renders human-readable console lines.
type TextFormatter struct {
	// DisableTimestamp drops the time column, useful in tests.
	DisableTimestamp bool
}

func (f *TextFormatter) encoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if f.DisableTimestamp {
		cfg.TimeKey = ""
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// JSONFormatter renders one JSON object per entry.
type JSONFormatter struct{}

func (*JSONFormatter) encoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// Output is a destination for encoded entries.
type Output interface {
	syncer() zapcore.WriteSyncer
}

type writerOutput struct{ ws zapcore.WriteSyncer }

func (o writerOutput) syncer() zapcore.WriteSyncer { return o.ws }

// NewConsoleOutput writes to stderr.
func NewConsoleOutput() Output { return writerOutput{ws: zapcore.Lock(os.Stderr)} }

// NewWriterOutput writes to w. Writes are serialized.
func NewWriterOutput(w io.Writer) Output {
	return writerOutput{ws: zapcore.Lock(zapcore.AddSync(w))}
}

// NewNullOutput discards everything.
func NewNullOutput() Output { return writerOutput{ws: zapcore.AddSync(io.Discard)} }

// LoggerOption is a function that configures a logger.
type LoggerOption func(*options)

type options struct {
	level     Level
	formatter Formatter
	outputs   []Output
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(o *options) { o.level = level }
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(o *options) { o.formatter = formatter }
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(o *options) { o.outputs = append(o.outputs, output) }
}

// BaseLogger implements Logger on top of a zap.Logger.
type BaseLogger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// NewLogger creates a new logger with the given options. Without options it
// logs JSON at info level to stderr.
func NewLogger(opts ...LoggerOption) Logger {
	o := &options{level: InfoLevel, formatter: &JSONFormatter{}}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.outputs) == 0 {
		o.outputs = append(o.outputs, NewConsoleOutput())
	}
	syncers := make([]zapcore.WriteSyncer, 0, len(o.outputs))
	for _, out := range o.outputs {
		syncers = append(syncers, out.syncer())
	}
	lvl := zap.NewAtomicLevelAt(o.level.zapLevel())
	core := zapcore.NewCore(o.formatter.encoder(), zapcore.NewMultiWriteSyncer(syncers...), lvl)
	return &BaseLogger{zl: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), level: lvl}
}

// NewNop returns a logger that discards all entries.
func NewNop() Logger {
	return &BaseLogger{zl: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, zapFields(fields)...) }
func (l *BaseLogger) Info(msg string, fields ...Field) { l.zl.Info(msg, zapFields(fields)...) }
func (l *BaseLogger) Warn(msg string, fields ...Field) { l.zl.Warn(msg, zapFields(fields)...) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.zl.Error(msg, zapFields(fields)...) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.zl.Fatal(msg, zapFields(fields)...) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.zl.Sugar().Debugf(msg, args...) }
func (l *BaseLogger) Infof(msg string, args ...interface{}) { l.zl.Sugar().Infof(msg, args...) }
func (l *BaseLogger) Warnf(msg string, args ...interface{}) { l.zl.Sugar().Warnf(msg, args...) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.zl.Sugar().Errorf(msg, args...) }

func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{zl: l.zl.With(zapFields(fields)...), level: l.level}
}

func (l *BaseLogger) WithError(err error) Logger { return l.With(Err(err)) }

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if v, ok := ctx.Value(ctxKey(RequestIDKey)).(string); ok && v != "" {
		return l.With(Str(RequestIDKey, v))
	}
	return l
}

func (l *BaseLogger) WithComponent(component string) Logger { return l.With(Component(component)) }

func (l *BaseLogger) SetLevel(level Level) { l.level.SetLevel(level.zapLevel()) }

func (l *BaseLogger) GetLevel() Level { return fromZapLevel(l.level.Level()) }

// Sync flushes buffered entries.
func (l *BaseLogger) Sync() error { return l.zl.Sync() }
