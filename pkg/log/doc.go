// Package log provides the relay's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves the
// formatter/output pipeline, so libraries speaking slog share one sink with
// the rest of the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("relay"))
//	l.Info("server started", log.Str("addr", ":9000"))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config with a level
// name and a text or json format.
//
// # Interop
//
// RedirectStdLog routes the standard library logger through this facade so
// third-party packages that write via package log share the same output.
package log
