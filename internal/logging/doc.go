// Package logging assembles the structured slog loggers used across the
// gantry daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so components emit log lines with
// consistent field names (component, file, collection, phase). A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
