package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger so callers never import zap directly.
type Logger struct {
	zap *zap.Logger
}

// Field is one key-value pair written alongside a log line.
type Field struct {
	Key   string
	Value any
}

func NewField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zapLevel() zapcore.Level {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New builds a JSON production logger writing to stdout at the given level.
func New(level Level) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}
	return &Logger{zap: z}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// FromZap wraps an existing zap logger, e.g. one built with zaptest.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zap: l.zap.With(convert(fields)...)}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.zap.Debug(msg, convert(fields)...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.zap.Info(msg, convert(fields)...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.zap.Warn(msg, convert(fields)...)
}

// Error logs err as the message. When err carries a pkg/errors stack, that
// stack replaces the one zap would capture at the call site.
func (l *Logger) Error(err error, fields ...Field) {
	ce := l.zap.Check(zapcore.ErrorLevel, err.Error())
	if ce == nil {
		return
	}
	var st stackTracer
	if errors.As(err, &st) {
		ce.Stack = strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))
	}
	ce.Write(convert(fields)...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.Debug(msg, withRequestID(ctx, fields)...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.Info(msg, withRequestID(ctx, fields)...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.Warn(msg, withRequestID(ctx, fields)...)
}

func (l *Logger) ErrorContext(ctx context.Context, err error, fields ...Field) {
	l.Error(err, withRequestID(ctx, fields)...)
}

func convert(fields []Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func withRequestID(ctx context.Context, fields []Field) []Field {
	if id := util.RequestID(ctx); id != "" {
		return append(fields, NewField("request_id", id))
	}
	return fields
}
