package ledger

import (
	"errors"
	"sync"
	"testing"

	"reelforge/internal/services"
)

func TestAdjacentBoundariesShareArtifact(t *testing.T) {
	t.Parallel()
	l := New(nil)

	if err := l.BindBoundary(1, PositionEnd, "kf2"); err != nil {
		t.Fatalf("bind segment 1 end: %v", err)
	}
	if err := l.BindBoundary(2, PositionStart, "kf2"); err != nil {
		t.Fatalf("bind segment 2 start with matching id: %v", err)
	}

	err := l.BindBoundary(2, PositionEnd, "kf3")
	if err != nil {
		t.Fatalf("bind segment 2 end: %v", err)
	}
	err = l.BindBoundary(3, PositionStart, "different")
	if !errors.Is(err, services.ErrLedger) {
		t.Fatalf("expected ledger violation for mismatched adjacent boundary, got %v", err)
	}
}

func TestRebindSameArtifactIsIdempotent(t *testing.T) {
	t.Parallel()
	l := New(nil)
	if err := l.BindBoundary(1, PositionStart, "kf1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := l.BindBoundary(1, PositionStart, "kf1"); err != nil {
		t.Fatalf("idempotent rebind should succeed: %v", err)
	}
	if err := l.BindBoundary(1, PositionStart, "kfX"); !errors.Is(err, services.ErrLedger) {
		t.Fatalf("expected violation rebinding to a different id, got %v", err)
	}
}

func TestBindRejectsBadArguments(t *testing.T) {
	t.Parallel()
	l := New(nil)
	if err := l.BindBoundary(0, PositionStart, "kf"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for segment 0, got %v", err)
	}
	if err := l.BindBoundary(1, Position("middle"), "kf"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad position, got %v", err)
	}
	if err := l.BindBoundary(1, PositionStart, ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty id, got %v", err)
	}
}

func TestFlagsAccumulateWithoutDuplicates(t *testing.T) {
	t.Parallel()
	l := New(nil)
	l.LockFlags("red collar", "white paws")
	l.LockFlags("white paws", "golden hour palette")

	flags := l.Flags()
	want := []string{"red collar", "white paws", "golden hour palette"}
	if len(flags) != len(want) {
		t.Fatalf("flags = %v, want %v", flags, want)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Fatalf("flags[%d] = %q, want %q", i, flags[i], want[i])
		}
	}
}

func TestCheckFlagsReportsUnlockedOnly(t *testing.T) {
	t.Parallel()
	l := New(nil)
	l.LockFlags("red collar")

	unlocked := l.CheckFlags([]string{"red collar", "blue bandana", ""})
	if len(unlocked) != 1 || unlocked[0] != "blue bandana" {
		t.Fatalf("unexpected unlocked set: %v", unlocked)
	}
}

func TestBindingsSnapshotOrdering(t *testing.T) {
	t.Parallel()
	l := New(nil)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(l.BindBoundary(2, PositionEnd, "kf3"))
	must(l.BindBoundary(1, PositionEnd, "kf2"))
	must(l.BindBoundary(1, PositionStart, "kf1"))
	must(l.BindBoundary(2, PositionStart, "kf2"))

	bindings := l.Bindings()
	if len(bindings) != 4 {
		t.Fatalf("expected 4 bindings, got %d", len(bindings))
	}
	if bindings[0].Segment != 1 || bindings[0].Position != PositionStart {
		t.Fatalf("unexpected ordering: %+v", bindings)
	}
	if bindings[3].Segment != 2 || bindings[3].Position != PositionEnd {
		t.Fatalf("unexpected ordering: %+v", bindings)
	}
}

func TestConcurrentMutationIsSerialized(t *testing.T) {
	t.Parallel()
	l := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = l.BindBoundary(n+1, PositionStart, "shared")
			l.LockFlags("flag")
		}(i)
	}
	wg.Wait()
	if got := len(l.Flags()); got != 1 {
		t.Fatalf("expected one locked flag, got %d", got)
	}
}
