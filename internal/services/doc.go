// Package services holds the error taxonomy and context plumbing shared by
// every external-service client and the execution engine.
//
// Errors are classified by wrapping sentinel markers (ErrService,
// ErrValidation, ErrLedger, ErrStorage, ErrConfiguration, ErrTimeout,
// ErrNotFound) so the engine can pick retry, rework, or abort behavior with
// errors.Is instead of string matching. Context helpers carry run, step, and
// correlation identifiers so log lines stay attributable across goroutines.
package services
