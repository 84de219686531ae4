package stepgraph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelforge/internal/services"
	"reelforge/internal/step"
)

type fakeStep struct {
	spec step.Spec
}

func (f fakeStep) Spec() step.Spec { return f.spec }

func (f fakeStep) Invoke(context.Context, step.View) step.Outcome {
	return step.Success(nil)
}

func declared(name string, reads, writes []string) step.Interface {
	return fakeStep{spec: step.Spec{Name: name, Reads: reads, Writes: writes}}
}

func TestBuildOrdersByDependencies(t *testing.T) {
	t.Parallel()
	graph, err := Build([]step.Interface{
		declared("assemble", []string{"segments"}, []string{"video"}),
		declared("plan", []string{"prompt"}, []string{"segments"}),
	}, []string{"prompt"})
	if err != nil {
		t.Fatal(err)
	}
	order := graph.Order()
	if order[0] != "plan" || order[1] != "assemble" {
		t.Fatalf("unexpected order: %v", order)
	}
	deps := graph.Dependencies("assemble")
	if len(deps) != 1 || deps[0] != "plan" {
		t.Fatalf("unexpected deps: %v", deps)
	}
}

func TestBuildStableTieBreak(t *testing.T) {
	t.Parallel()
	graph, err := Build([]step.Interface{
		declared("c", nil, []string{"kc"}),
		declared("a", nil, []string{"ka"}),
		declared("b", nil, []string{"kb"}),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	order := graph.Order()
	if strings.Join(order, ",") != "a,b,c" {
		t.Fatalf("order should break ties alphabetically: %v", order)
	}
}

func TestBuildRejectsDuplicateWriter(t *testing.T) {
	t.Parallel()
	_, err := Build([]step.Interface{
		declared("one", nil, []string{"k"}),
		declared("two", nil, []string{"k"}),
	}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildRejectsUnwrittenRead(t *testing.T) {
	t.Parallel()
	_, err := Build([]step.Interface{
		declared("lonely", []string{"missing"}, nil),
	}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildAllowsSeedReads(t *testing.T) {
	t.Parallel()
	graph, err := Build([]step.Interface{
		declared("ingest", []string{"prompt", "assets"}, []string{"manifest"}),
	}, []string{"prompt", "assets"})
	if err != nil {
		t.Fatal(err)
	}
	if graph.Len() != 1 {
		t.Fatalf("unexpected size %d", graph.Len())
	}
}

func TestBuildRejectsSeedWriter(t *testing.T) {
	t.Parallel()
	_, err := Build([]step.Interface{
		declared("bad", nil, []string{"prompt"}),
	}, []string{"prompt"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	t.Parallel()
	_, err := Build([]step.Interface{
		declared("x", []string{"ky"}, []string{"kx"}),
		declared("y", []string{"kx"}, []string{"ky"}),
	}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("error should name the cycle: %v", err)
	}
}

func TestBuildValidatesGateTarget(t *testing.T) {
	t.Parallel()
	producer := declared("draft", nil, []string{"storyboard"})

	gate := fakeStep{spec: step.Spec{
		Name:         "review",
		Reads:        []string{"storyboard"},
		Writes:       []string{"storyboard_approved"},
		ReworkTarget: "draft",
	}}
	if _, err := Build([]step.Interface{producer, gate}, nil); err != nil {
		t.Fatalf("valid gate rejected: %v", err)
	}

	dangling := fakeStep{spec: step.Spec{
		Name:         "review",
		Reads:        []string{"storyboard"},
		Writes:       []string{"storyboard_approved"},
		ReworkTarget: "nonexistent",
	}}
	if _, err := Build([]step.Interface{producer, dangling}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing target, got %v", err)
	}

	unrelated := fakeStep{spec: step.Spec{
		Name:         "review",
		Reads:        []string{"other"},
		Writes:       []string{"storyboard_approved"},
		ReworkTarget: "draft",
	}}
	other := declared("elsewhere", nil, []string{"other"})
	if _, err := Build([]step.Interface{producer, other, unrelated}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unrelated target, got %v", err)
	}
}
