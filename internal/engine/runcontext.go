package engine

import (
	"fmt"
	"sync"

	"reelforge/internal/services"
	"reelforge/internal/step"
)

// RunContext is the single mutable record of a run: the committed key/value
// state plus per-step rework feedback. Steps never touch it directly; the
// engine commits outcomes into it and projects read-only views out of it.
type RunContext struct {
	info step.RunInfo

	mu       sync.Mutex
	values   map[string]any
	feedback map[string][]string
}

// NewRunContext seeds a run context with the immutable run info and the
// initial key set supplied by the caller.
func NewRunContext(info step.RunInfo, seeds map[string]any) *RunContext {
	values := make(map[string]any, len(seeds))
	for key, value := range seeds {
		values[key] = value
	}
	return &RunContext{
		info:     info,
		values:   values,
		feedback: make(map[string][]string),
	}
}

// Info returns the immutable run seed.
func (rc *RunContext) Info() step.RunInfo { return rc.info }

// ViewFor projects the read-only view a step receives at dispatch: a snapshot
// of its declared read keys plus any rework feedback addressed to it.
func (rc *RunContext) ViewFor(spec step.Spec) step.View {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	snapshot := make(map[string]any, len(spec.Reads))
	for _, key := range spec.Reads {
		if value, ok := rc.values[key]; ok {
			snapshot[key] = value
		}
	}
	return step.NewView(rc.info, spec.Reads, snapshot, rc.feedback[spec.Name])
}

// Commit applies a step's updates atomically. Every key must be unwritten:
// the only path that frees a key is rework invalidation, so an occupied key
// means the scheduler re-ran a step without invalidating it first.
func (rc *RunContext) Commit(stepName string, updates map[string]any) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for key := range updates {
		if _, exists := rc.values[key]; exists {
			return services.Wrap(services.ErrConfiguration, stepName, "commit",
				fmt.Sprintf("key %q already committed", key), nil)
		}
	}
	for key, value := range updates {
		rc.values[key] = value
	}
	return nil
}

// Invalidate removes committed keys so their producer can be re-run.
func (rc *RunContext) Invalidate(keys ...string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, key := range keys {
		delete(rc.values, key)
	}
}

// AddFeedback appends gate feedback for the named step, oldest first.
func (rc *RunContext) AddFeedback(stepName, feedback string) {
	if feedback == "" {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.feedback[stepName] = append(rc.feedback[stepName], feedback)
}

// Value returns a committed value.
func (rc *RunContext) Value(key string) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	value, ok := rc.values[key]
	return value, ok
}

// Snapshot returns a copy of all committed state, for manifests and reports.
func (rc *RunContext) Snapshot() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]any, len(rc.values))
	for key, value := range rc.values {
		out[key] = value
	}
	return out
}
