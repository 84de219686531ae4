package engine

import (
	"sync"

	"reelforge/internal/stepgraph"
)

// runState is the engine's per-run scheduling bookkeeping. The mutex guards
// the maps; the run context carries its own lock.
type runState struct {
	graph  *stepgraph.Graph
	runCtx *RunContext

	mu         sync.Mutex
	states     map[string]State
	attempts   map[string]int
	rework     map[string]int
	dependents map[string][]string
}

func newRunState(graph *stepgraph.Graph, runCtx *RunContext) *runState {
	states := make(map[string]State, graph.Len())
	dependents := make(map[string][]string, graph.Len())
	for _, name := range graph.Order() {
		states[name] = Pending
		for _, parent := range graph.Dependencies(name) {
			dependents[parent] = append(dependents[parent], name)
		}
	}
	return &runState{
		graph:      graph,
		runCtx:     runCtx,
		states:     states,
		attempts:   make(map[string]int, graph.Len()),
		rework:     make(map[string]int),
		dependents: dependents,
	}
}

func (rs *runState) setState(name string, state State) {
	rs.mu.Lock()
	rs.states[name] = state
	rs.mu.Unlock()
}

func (rs *runState) addAttempt(name string) {
	rs.mu.Lock()
	rs.attempts[name]++
	rs.mu.Unlock()
}

func (rs *runState) incRework(gate string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rework[gate]++
	return rs.rework[gate]
}

// nextDispatchable returns the first step in topological order that is
// waiting and whose dependencies are all settled successfully.
func (rs *runState) nextDispatchable() (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, name := range rs.graph.Order() {
		if rs.states[name].dispatchable() && rs.depsSatisfiedLocked(name) {
			return name, true
		}
	}
	return "", false
}

// dispatchableSets partitions the currently dispatchable steps into those
// marked for concurrent dispatch and those that must run alone.
func (rs *runState) dispatchableSets() (concurrent, serial []string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, name := range rs.graph.Order() {
		if !rs.states[name].dispatchable() || !rs.depsSatisfiedLocked(name) {
			continue
		}
		s, _ := rs.graph.Step(name)
		if s.Spec().Parallel {
			concurrent = append(concurrent, name)
		} else {
			serial = append(serial, name)
		}
	}
	return concurrent, serial
}

func (rs *runState) depsSatisfiedLocked(name string) bool {
	for _, parent := range rs.graph.Dependencies(name) {
		if !rs.states[parent].satisfies() {
			return false
		}
	}
	return true
}

func (rs *runState) allSettled() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, state := range rs.states {
		if !state.satisfies() {
			return false
		}
	}
	return true
}

// transitiveDependents returns every step downstream of name, in topological
// order. Used by rework to invalidate results derived from a rejected output.
func (rs *runState) transitiveDependents(name string) []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	marked := make(map[string]struct{})
	var walk func(string)
	walk = func(current string) {
		for _, child := range rs.dependents[current] {
			if _, ok := marked[child]; ok {
				continue
			}
			marked[child] = struct{}{}
			walk(child)
		}
	}
	walk(name)
	var out []string
	for _, candidate := range rs.graph.Order() {
		if _, ok := marked[candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

func (rs *runState) statesSnapshot() map[string]State {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]State, len(rs.states))
	for name, state := range rs.states {
		out[name] = state
	}
	return out
}

func (rs *runState) attemptsSnapshot() map[string]int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]int, len(rs.attempts))
	for name, count := range rs.attempts {
		out[name] = count
	}
	return out
}

func (rs *runState) reworkSnapshot() map[string]int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]int, len(rs.rework))
	for name, count := range rs.rework {
		out[name] = count
	}
	return out
}
