package engine

// Status is the terminal status of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result describes how a run ended and what each step went through getting
// there.
type Result struct {
	Status Status
	// FailedStep names the step whose failure ended the run. Empty on success
	// and cancellation.
	FailedStep string
	// Err is the failure cause, tagged with a services sentinel.
	Err error
	// StepStates holds the final state of every step.
	StepStates map[string]State
	// Attempts counts invocations per step across all dispatch episodes.
	Attempts map[string]int
	// ReworkRounds counts rejections issued per quality gate.
	ReworkRounds map[string]int
}

// TotalReworkRounds sums rejections across all gates.
func (r Result) TotalReworkRounds() int {
	total := 0
	for _, rounds := range r.ReworkRounds {
		total += rounds
	}
	return total
}
