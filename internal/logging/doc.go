// Package logging assembles structured slog loggers and formatting helpers
// used across torrentrss.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and manages the per-run log files under the configured log
// directory, including the keep-newest retention sweep. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
