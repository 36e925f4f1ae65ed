// Package logging assembles structured slog loggers used across prmanager.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so remote calls automatically tag
// log lines with their correlation IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Console output goes to stderr by default so tables written to stdout stay
// clean when piped.
package logging
