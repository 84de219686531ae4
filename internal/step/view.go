package step

import (
	"fmt"

	"reelforge/internal/services"
)

// RunInfo is the immutable run seed every view exposes.
type RunInfo struct {
	RunID             string
	Prompt            string
	TargetDurationSec int
	FPS               int
	SegmentCount      int
}

// View is the read-only projection handed to a step at dispatch. It holds a
// snapshot of only the step's declared read keys, so a step structurally
// cannot observe undeclared state or a concurrent partial write.
type View struct {
	info     RunInfo
	declared map[string]struct{}
	values   map[string]any
	feedback []string
}

// NewView builds a view over a snapshot. The engine passes only values for
// declared keys; declared tracks the full read set so missing-vs-undeclared
// stays distinguishable.
func NewView(info RunInfo, declared []string, values map[string]any, feedback []string) View {
	set := make(map[string]struct{}, len(declared))
	for _, key := range declared {
		set[key] = struct{}{}
	}
	copied := make(map[string]any, len(values))
	for key, value := range values {
		if _, ok := set[key]; ok {
			copied[key] = value
		}
	}
	fb := make([]string, len(feedback))
	copy(fb, feedback)
	return View{info: info, declared: set, values: copied, feedback: fb}
}

// Run returns the run seed.
func (v View) Run() RunInfo { return v.info }

// Value returns the snapshot value for a declared key. Asking for an
// undeclared key is a configuration error; a declared key that no upstream
// step has committed yet reports not-found.
func (v View) Value(key string) (any, error) {
	if _, ok := v.declared[key]; !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q not declared", key), nil)
	}
	value, ok := v.values[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "", "read", fmt.Sprintf("key %q not committed", key), nil)
	}
	return value, nil
}

// Has reports whether a declared key carries a committed value.
func (v View) Has(key string) bool {
	_, ok := v.values[key]
	return ok
}

// Feedback returns rework feedback accumulated for this step, oldest first.
func (v View) Feedback() []string {
	out := make([]string, len(v.feedback))
	copy(out, v.feedback)
	return out
}
