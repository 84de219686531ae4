package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is a step's position in the execution state machine.
type State int

const (
	// Pending steps have not been dispatched and wait on their dependencies.
	Pending State = iota
	// Running steps are currently invoked.
	Running
	// Retrying steps failed transiently and wait out a backoff delay.
	Retrying
	// RejectedForRework marks a producer whose output a quality gate refused;
	// it is eligible for re-dispatch with feedback attached.
	RejectedForRework
	// Succeeded steps have committed their updates.
	Succeeded
	// Skipped marks an optional step that exhausted its budget; the run
	// continues without its outputs.
	Skipped
	// Failed is terminal for the step and, unless the step is optional, for
	// the run.
	Failed
)

var stateNames = map[State]string{
	Pending:           "pending",
	Running:           "running",
	Retrying:          "retrying",
	RejectedForRework: "rejected_for_rework",
	Succeeded:         "succeeded",
	Skipped:           "skipped",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var labelCaser = cases.Title(language.English)

// Label returns a human-facing rendering of the state, e.g.
// "Rejected For Rework".
func (s State) Label() string {
	return labelCaser.String(strings.ReplaceAll(s.String(), "_", " "))
}

// Terminal reports whether the state can no longer change within the run.
func (s State) Terminal() bool {
	return s == Succeeded || s == Skipped || s == Failed
}

// dispatchable reports whether the scheduler may pick the step up once its
// dependencies are satisfied.
func (s State) dispatchable() bool {
	return s == Pending || s == RejectedForRework
}

// satisfies reports whether a dependency in this state unblocks its readers.
func (s State) satisfies() bool {
	return s == Succeeded || s == Skipped
}
