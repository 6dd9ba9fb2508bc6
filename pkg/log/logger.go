// Package log provides a structured logging system for Sluice services.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"time"
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

// Fields is a map of field names to values.
type Fields map[string]interface{}

// Context keys for propagating logging context
const (
	RequestIDKey = "request_id"
	TraceIDKey   = "trace_id"
	SpanIDKey    = "span_id"
	ComponentKey = "component"
	OperationKey = "operation"
)

// Entry represents a single log entry.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
	Error     error
}

// Logger defines the core logging interface for Sluice components.
type Logger interface {
	// Standard logging methods with structured context (Field-based API)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Standard logging methods with key-value pairs (for backward compatibility)
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Fatalf(msg string, args ...interface{})

	// Field creation methods (for backward compatibility)
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	// With adds multiple fields to the logger (for new Field-based API)
	With(fields ...Field) Logger

	// WithContext adds request context to the Logger
	WithContext(ctx context.Context) Logger

	// WithComponent tags logs with a component name
	WithComponent(component string) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)

	// GetLevel returns the current minimum log level
	GetLevel() Level
}

// Formatter defines the interface for formatting log entries.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output defines the interface for log outputs.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*BaseLogger)

// BaseLogger implements the Logger interface.
type BaseLogger struct {
	level      Level
	fields     Fields
	formatter  Formatter
	outputs    []Output
	slogLogger *slog.Logger
}

// Hooks are no longer used; prefer slog handler wrappers for cross-cutting concerns.

// ContextExtractor extracts logging context from a context.Context.
func ContextExtractor(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}

	fields := Fields{}

	// Extract standard context values
	if v := ctx.Value(RequestIDKey); v != nil {
		fields[RequestIDKey] = v
	}
	if v := ctx.Value(TraceIDKey); v != nil {
		fields[TraceIDKey] = v
	}
	if v := ctx.Value(SpanIDKey); v != nil {
		fields[SpanIDKey] = v
	}
	if v := ctx.Value(ComponentKey); v != nil {
		fields[ComponentKey] = v
	}
	if v := ctx.Value(OperationKey); v != nil {
		fields[OperationKey] = v
	}

	// Extract custom field keys (injected by ContextInjector)
	// We need to scan all context keys to find our custom fieldKeyType keys
	// This is a limitation of Go's context package - we can't enumerate all keys
	// For now, we'll rely on the standard keys above and any custom extraction logic

	return fields
}

// ContextInjector removed; prefer passing fields with Logger.With().
// FromContext removed; pass Logger explicitly via dependency injection.
// Deprecated context helpers removed.
// Global default logger removed; construct and pass Logger instances explicitly.
// Global helper functions removed; prefer using a concrete Logger instance.
// NewLogger creates a new logger with the given options.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:     InfoLevel,
		fields:    Fields{},
		formatter: &JSONFormatter{},
		outputs:   []Output{},
	}

	// Apply options
	for _, option := range options {
		option(logger)
	}

	// Add default output if none specified
	if len(logger.outputs) == 0 {
		logger.outputs = append(logger.outputs, &ConsoleOutput{})
	}

	// Initialize slog with our bridge handler
	logger.slogLogger = slog.New(newBridgeHandler(logger))

	return logger
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) {
		l.level = level
	}
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) {
		l.formatter = formatter
	}
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) {
		l.outputs = append(l.outputs, output)
	}
}

// Field is a single piece of structured context attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Str creates a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 creates a uint64 Field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a time.Duration Field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err creates an error Field under the conventional key "error".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component creates a Field tagging the emitting subsystem.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Any creates a Field from an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	if l.slogLogger == nil {
		return
	}
	attrs := attrsFromFieldSlice(fields)
	l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), msg, attrs...)
	if level == FatalLevel {
		panic(msg)
	}
}

func (l *BaseLogger) mergedFields(fields []Field) []Field {
	if len(l.fields) == 0 {
		return fields
	}
	out := make([]Field, 0, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out = append(out, Field{Key: k, Value: v})
	}
	out = append(out, fields...)
	return out
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, l.mergedFields(fields)) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, l.mergedFields(fields)) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, l.mergedFields(fields)) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, l.mergedFields(fields)) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, l.mergedFields(fields)) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.Debug(fmtSprintf(msg, args...)) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.Info(fmtSprintf(msg, args...)) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.Warn(fmtSprintf(msg, args...)) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.Error(fmtSprintf(msg, args...)) }
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.Fatal(fmtSprintf(msg, args...)) }

func (l *BaseLogger) clone() *BaseLogger {
	nf := make(Fields, len(l.fields))
	for k, v := range l.fields {
		nf[k] = v
	}
	nl := &BaseLogger{level: l.level, fields: nf, formatter: l.formatter, outputs: l.outputs}
	nl.slogLogger = slog.New(newBridgeHandler(nl))
	return nl
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *BaseLogger) With(fields ...Field) Logger {
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	return nl
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	extracted := ContextExtractor(ctx)
	if len(extracted) == 0 {
		return l
	}
	return l.WithFields(extracted)
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.WithField(ComponentKey, component)
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }
func (l *BaseLogger) GetLevel() Level      { return l.level }

func fmtSprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
