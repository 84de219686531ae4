package stepgraph

import (
	"fmt"
	"sort"

	"reelforge/internal/services"
	"reelforge/internal/step"
)

// Graph is an immutable dependency graph over a set of steps. Edges are
// derived from read/write key declarations: a step that reads a key depends
// on the step that writes it. Keys listed as seeds are supplied by the run
// itself and need no writer.
type Graph struct {
	steps   map[string]step.Interface
	order   []string
	deps    map[string][]string
	writers map[string]string
}

// Build validates the step set and computes a topological order.
//
// Build fails when two steps write the same key, when a non-seed read has no
// writer, when a gate names an unknown or unrelated rework target, or when
// the derived edges contain a cycle. All of these are wiring mistakes, so
// they surface as configuration errors.
func Build(steps []step.Interface, seeds []string) (*Graph, error) {
	byName := make(map[string]step.Interface, len(steps))
	writers := make(map[string]string)
	seedSet := make(map[string]struct{}, len(seeds))
	for _, key := range seeds {
		seedSet[key] = struct{}{}
	}

	for _, s := range steps {
		spec := s.Spec()
		if spec.Name == "" {
			return nil, services.Wrap(services.ErrConfiguration, "", "graph build", "step with empty name", nil)
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, services.Wrap(services.ErrConfiguration, spec.Name, "graph build", "duplicate step name", nil)
		}
		byName[spec.Name] = s
		for _, key := range spec.Writes {
			if prev, taken := writers[key]; taken {
				return nil, services.Wrap(services.ErrConfiguration, spec.Name, "graph build",
					fmt.Sprintf("key %q already written by step %q", key, prev), nil)
			}
			if _, seeded := seedSet[key]; seeded {
				return nil, services.Wrap(services.ErrConfiguration, spec.Name, "graph build",
					fmt.Sprintf("key %q is a seed and cannot be written", key), nil)
			}
			writers[key] = spec.Name
		}
	}

	deps := make(map[string][]string, len(byName))
	for name, s := range byName {
		spec := s.Spec()
		seen := make(map[string]struct{})
		for _, key := range spec.Reads {
			if _, seeded := seedSet[key]; seeded {
				continue
			}
			writer, ok := writers[key]
			if !ok {
				return nil, services.Wrap(services.ErrConfiguration, name, "graph build",
					fmt.Sprintf("read key %q has no writer", key), nil)
			}
			if writer == name {
				return nil, services.Wrap(services.ErrConfiguration, name, "graph build",
					fmt.Sprintf("step reads its own output %q", key), nil)
			}
			if _, dup := seen[writer]; dup {
				continue
			}
			seen[writer] = struct{}{}
			deps[name] = append(deps[name], writer)
		}
		sort.Strings(deps[name])
	}

	if err := validateGates(byName, writers); err != nil {
		return nil, err
	}

	order, err := topoOrder(byName, deps)
	if err != nil {
		return nil, err
	}

	return &Graph{steps: byName, order: order, deps: deps, writers: writers}, nil
}

// validateGates checks that every rework target exists and actually produces
// something the gate inspects. A gate pointed at an unrelated step could
// never clear its own rejection.
func validateGates(byName map[string]step.Interface, writers map[string]string) error {
	for name, s := range byName {
		spec := s.Spec()
		if !spec.IsGate() {
			continue
		}
		target, ok := byName[spec.ReworkTarget]
		if !ok {
			return services.Wrap(services.ErrConfiguration, name, "graph build",
				fmt.Sprintf("rework target %q does not exist", spec.ReworkTarget), nil)
		}
		inspects := false
		for _, key := range spec.Reads {
			if writers[key] == spec.ReworkTarget {
				inspects = true
				break
			}
		}
		if !inspects {
			return services.Wrap(services.ErrConfiguration, name, "graph build",
				fmt.Sprintf("gate does not read any output of rework target %q", spec.ReworkTarget), nil)
		}
		if target.Spec().IsGate() {
			return services.Wrap(services.ErrConfiguration, name, "graph build",
				fmt.Sprintf("rework target %q is itself a gate", spec.ReworkTarget), nil)
		}
	}
	return nil
}

// topoOrder runs Kahn's algorithm. Ties break alphabetically so the order is
// stable across runs, which keeps logs and tests deterministic.
func topoOrder(byName map[string]step.Interface, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string)
	for name := range byName {
		indegree[name] = 0
	}
	for name, parents := range deps {
		indegree[name] = len(parents)
		for _, parent := range parents {
			dependents[parent] = append(dependents[parent], name)
		}
	}

	var ready []string
	for name, degree := range indegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(byName))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		released := false
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(byName) {
		var stuck []string
		for name, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, services.Wrap(services.ErrConfiguration, "", "graph build",
			fmt.Sprintf("dependency cycle through %v", stuck), nil)
	}
	return order, nil
}

// Order returns step names in a stable topological order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Step looks up a step by name.
func (g *Graph) Step(name string) (step.Interface, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Dependencies returns the names of the steps that write keys the named step
// reads.
func (g *Graph) Dependencies(name string) []string {
	parents := g.deps[name]
	out := make([]string, len(parents))
	copy(out, parents)
	return out
}

// Writer returns the step that produces the given key, if any.
func (g *Graph) Writer(key string) (string, bool) {
	name, ok := g.writers[key]
	return name, ok
}

// Len reports the number of steps in the graph.
func (g *Graph) Len() int { return len(g.steps) }
