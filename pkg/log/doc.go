// Package log provides Sluice's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves a formatter/
// output pipeline independent of slog's own handler ecosystem, so the rest
// of the broker never imports log/slog directly.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("writer"), log.Str("topic", "orders"))
//	l.Info("batch committed", log.Int("count", 12))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting
// JSON or text formatting, console output, and an optional file output.
// NullOutput is not selectable through Config; attach it with WithOutput.
//
// # Interop
//
// RedirectStdLog points the standard library's log package at a Logger, so
// that dependencies which only know about log.Logger (such as Pebble) still
// end up in the same structured stream.
package log
