package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrService, "keyframe.2", "generate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"keyframe.2", "generate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToService(t *testing.T) {
	err := services.Wrap(nil, "describe", "call", "no marker", nil)
	if !errors.Is(err, services.ErrService) {
		t.Fatalf("expected default service marker, got %v", err)
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
	}{
		{"service", services.Wrap(services.ErrService, "s", "op", "m", nil), true, false},
		{"timeout", services.Wrap(services.ErrTimeout, "s", "op", "m", nil), true, false},
		{"validation", services.Wrap(services.ErrValidation, "s", "op", "m", nil), false, false},
		{"ledger", services.Wrap(services.ErrLedger, "s", "op", "m", nil), false, true},
		{"storage", services.Wrap(services.ErrStorage, "s", "op", "m", nil), false, true},
		{"configuration", services.Wrap(services.ErrConfiguration, "s", "op", "m", nil), false, true},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.retryable {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.retryable)
		}
		if got := services.Fatal(tc.err); got != tc.fatal {
			t.Errorf("%s: Fatal = %v, want %v", tc.name, got, tc.fatal)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithStep(ctx, "storyboard")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id mismatch: %q %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "storyboard" {
		t.Fatalf("step mismatch: %q %v", step, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("request id mismatch: %q %v", rid, ok)
	}
	if _, ok := services.RunIDFromContext(context.Background()); ok {
		t.Fatal("expected no run id on empty context")
	}
}
