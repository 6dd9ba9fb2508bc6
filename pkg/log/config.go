package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config is the declarative form used by process entrypoints to build a
// Logger from a few string knobs, typically sourced from SLUICE_LOG_LEVEL
// and SLUICE_LOG_FORMAT environment variables or CLI flags.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // text|json
	File   string // optional path; console is always attached in addition
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
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

// ApplyConfig builds a Logger from a Config, defaulting to info/text/console.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter = &TextFormatter{}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		formatter = &JSONFormatter{}
	case "", "text":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())}
	if cfg.File != "" {
		fo, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("log: open file output: %w", err)
		}
		opts = append(opts, WithOutput(fo))
	}
	return NewLogger(opts...), nil
}

// stdLogWriter adapts a Logger into an io.Writer so the standard library's
// log package (and anything that only knows about *log.Logger, such as
// Pebble) can be redirected into the structured pipeline.
type stdLogWriter struct {
	logger Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.logger.Info(msg, Component("stdlog"))
	}
	return len(p), nil
}

// ToStdLogger returns a *log.Logger that writes into the given Logger.
func ToStdLogger(l Logger) *stdlog.Logger {
	return stdlog.New(stdLogWriter{logger: l}, "", 0)
}

// RedirectStdLog points the standard library's default logger at l, so
// dependencies that log via log.Println end up in the same stream.
func RedirectStdLog(l Logger) {
	stdlog.SetOutput(stdLogWriter{logger: l})
	stdlog.SetFlags(0)
}
