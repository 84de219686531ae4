// Package logging assembles structured slog loggers and formatting helpers
// used across reelforge.
//
// It centralizes level and output plumbing and exposes context-aware helpers
// so engine and step code automatically tag log lines with run IDs, step
// names, and correlation IDs. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
