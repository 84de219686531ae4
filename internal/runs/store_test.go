package runs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reelforge/internal/ledger"
	"reelforge/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Create(ctx, Record{
		RunID: "run-1", Prompt: "a cat in space",
		TargetDurationSec: 24, FPS: 24, SegmentCount: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusRunning || rec.Prompt != "a cat in space" || rec.SegmentCount != 3 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("created_at not recorded")
	}
}

func TestFinishSuccessPersistsManifest(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, Record{RunID: "run-2", Prompt: "p", TargetDurationSec: 16, FPS: 24, SegmentCount: 2}); err != nil {
		t.Fatal(err)
	}
	manifest := &Manifest{
		RunID:           "run-2",
		FPS:             24,
		FinalArtifactID: "abc123",
		Segments: []SegmentEntry{
			{Index: 1, DurationSec: 8, VideoArtifactID: "v1", StartBoundaryID: "k0", EndBoundaryID: "k1"},
			{Index: 2, DurationSec: 8, VideoArtifactID: "v2", StartBoundaryID: "k1", EndBoundaryID: "k2"},
		},
		Bindings: []ledger.Binding{{Segment: 1, Position: ledger.PositionStart, ArtifactID: "k0"}},
	}
	err := store.Finish(ctx, Record{
		RunID: "run-2", Status: StatusSucceeded,
		Attempts: map[string]int{"keyframe_1": 2}, ReworkRounds: map[string]int{"keyframe_review_1": 1},
		Manifest: manifest,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusSucceeded {
		t.Fatalf("status = %s", rec.Status)
	}
	if rec.Manifest == nil || len(rec.Manifest.Segments) != 2 {
		t.Fatalf("manifest not round-tripped: %+v", rec.Manifest)
	}
	if rec.Manifest.Segments[0].EndBoundaryID != rec.Manifest.Segments[1].StartBoundaryID {
		t.Fatal("adjacent segments should share a boundary in the manifest")
	}
	if rec.Attempts["keyframe_1"] != 2 || rec.ReworkRounds["keyframe_review_1"] != 1 {
		t.Fatalf("counters not round-tripped: %+v", rec)
	}
}

func TestFinishFailureRecordsStepAndError(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, Record{RunID: "run-3", Prompt: "p", TargetDurationSec: 8, FPS: 24, SegmentCount: 1}); err != nil {
		t.Fatal(err)
	}
	err := store.Finish(ctx, Record{
		RunID: "run-3", Status: StatusFailed,
		FailedStep: "video_2", Error: "storage error: disk full",
	})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.Get(ctx, "run-3")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FailedStep != "video_2" || rec.Error == "" {
		t.Fatalf("failure details missing: %+v", rec)
	}
	if rec.Manifest != nil {
		t.Fatal("failed run should carry no manifest")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	err := store.Finish(context.Background(), Record{RunID: "ghost", Status: StatusFailed})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, Record{RunID: id, Prompt: "p", TargetDurationSec: 8, FPS: 24, SegmentCount: 1}); err != nil {
			t.Fatal(err)
		}
	}
	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d", len(records))
	}
}

func TestGetUnknownRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
