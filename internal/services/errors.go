package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrService marks a failed call to an external generation service. Retryable.
	ErrService = errors.New("service error")
	// ErrValidation marks rejected step output. Triggers the rework loop, not retry.
	ErrValidation = errors.New("validation error")
	// ErrLedger marks an adjacent-segment boundary mismatch. Fatal: indicates a
	// graph-construction or step-contract bug.
	ErrLedger = errors.New("ledger violation")
	// ErrStorage marks failed artifact persistence. Fatal for the run.
	ErrStorage = errors.New("storage error")
	// ErrConfiguration marks build-time defects (cyclic graph, undeclared key
	// access). Never a runtime condition.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a step exceeding its invoke deadline. Retryable.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound marks a missing artifact or record.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error should be recovered via the retry state
// machine rather than escalated.
func Retryable(err error) bool {
	return errors.Is(err, ErrService) || errors.Is(err, ErrTimeout)
}

// Fatal reports whether the error must abort the run regardless of remaining
// attempt budget.
func Fatal(err error) bool {
	return errors.Is(err, ErrLedger) || errors.Is(err, ErrStorage) || errors.Is(err, ErrConfiguration)
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
