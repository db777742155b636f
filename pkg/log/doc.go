// Package log provides floq's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. It is backed by zap: the text
// format uses zap's console encoder, the json format its JSON encoder.
// Components never construct zap loggers directly; they receive a Logger and
// tag it with a component name.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("queue", "orders"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// text/json format). NewNop returns a logger that discards everything and is
// what tests usually want.
//
// # Interop
//
// Libraries that write through the standard library logger (Pebble does) can
// be captured with RedirectStdLog.
package log
