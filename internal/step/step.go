package step

import (
	"context"

	"reelforge/internal/ledger"
)

// Boundary declares that a step's committed output at Key is the artifact
// anchoring a segment boundary. The engine binds it into the consistency
// ledger as part of the commit.
type Boundary struct {
	Segment  int
	Position ledger.Position
	Key      string
}

// Spec declares a step's contract with the execution engine: the run-context
// keys it reads, the keys it writes, and its scheduling/retry properties.
type Spec struct {
	Name string
	// Reads lists the context keys the step's view exposes. Reading anything
	// else is a programming error, not a runtime condition.
	Reads []string
	// Writes lists the keys the step may propose updates for. A committed key
	// is written at most once per run.
	Writes []string
	// Retryable marks steps safe to re-invoke verbatim. Generation steps are
	// retryable even though a retry may produce a different valid artifact.
	Retryable bool
	// Optional steps that fail do not abort the run.
	Optional bool
	// Parallel marks the step eligible for concurrent dispatch alongside
	// other eligible parallel steps.
	Parallel bool
	// Boundaries are bound into the consistency ledger on commit.
	Boundaries []Boundary
	// ReworkTarget names the producing step a quality gate sends back for
	// rework when it rejects. Empty for ordinary steps.
	ReworkTarget string
}

// IsGate reports whether the step is a quality gate.
func (s Spec) IsGate() bool { return s.ReworkTarget != "" }

// Interface is the unit of work the engine schedules. Invoke must treat the
// view as read-only and return its effects as a proposed update; the engine
// alone commits state.
type Interface interface {
	Spec() Spec
	Invoke(ctx context.Context, view View) Outcome
}
