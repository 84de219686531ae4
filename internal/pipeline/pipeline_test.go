package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/engine"
	"reelforge/internal/ledger"
	"reelforge/internal/logging"
	"reelforge/internal/runs"
	"reelforge/internal/services"
	"reelforge/internal/services/jimeng"
	"reelforge/internal/stepgraph"
	"reelforge/internal/testsupport"
)

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *runs.Store) {
	t.Helper()
	store, registry := testsupport.OpenStores(t, cfg)
	return New(cfg, store, registry, logging.NewNop()), registry
}

func TestRunEndToEndMock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegments(3), testsupport.WithMaxAttempts(2))
	p, registry := newTestPipeline(t, cfg)
	assets := testsupport.WriteAssets(t, cfg, "hero.png", "street.png")

	outcome, err := p.Run(context.Background(), RunRequest{
		Prompt:     "a fox explores a neon city at night",
		AssetPaths: assets,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Status != string(engine.StatusSucceeded) {
		t.Fatalf("status = %s, want succeeded", outcome.Status)
	}
	if outcome.Manifest == nil {
		t.Fatal("expected a manifest on success")
	}

	manifest := outcome.Manifest
	if len(manifest.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(manifest.Segments))
	}
	// Adjacent segments share one boundary artifact.
	for i := 1; i < len(manifest.Segments); i++ {
		prev, next := manifest.Segments[i-1], manifest.Segments[i]
		if prev.EndBoundaryID == "" {
			t.Fatalf("segment %d has no end boundary", prev.Index)
		}
		if prev.EndBoundaryID != next.StartBoundaryID {
			t.Errorf("segment %d end %q != segment %d start %q",
				prev.Index, prev.EndBoundaryID, next.Index, next.StartBoundaryID)
		}
	}
	// Four keyframes across three segments; interior keyframes bind twice.
	if len(manifest.Bindings) != 6 {
		t.Errorf("bindings = %d, want 6", len(manifest.Bindings))
	}
	distinct := make(map[string]struct{})
	for _, b := range manifest.Bindings {
		distinct[b.ArtifactID] = struct{}{}
	}
	if len(distinct) != 4 {
		t.Errorf("distinct boundary artifacts = %d, want 4", len(distinct))
	}

	data, err := os.ReadFile(outcome.FinalPath)
	if err != nil {
		t.Fatalf("read final output: %v", err)
	}
	content := string(data)
	for _, header := range []string{"=== segment 1 ===", "=== segment 2 ===", "=== segment 3 ==="} {
		if !strings.Contains(content, header) {
			t.Errorf("final output missing %q", header)
		}
	}

	rec, err := registry.Get(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("get run record: %v", err)
	}
	if rec.Status != runs.StatusSucceeded {
		t.Errorf("record status = %s, want %s", rec.Status, runs.StatusSucceeded)
	}
	if rec.Manifest == nil || rec.Manifest.FinalArtifactID != manifest.FinalArtifactID {
		t.Error("persisted manifest does not match run outcome")
	}
	if rec.Attempts[StepStoryboardDraft] < 1 {
		t.Error("persisted attempts missing storyboard draft")
	}
}

// flakySynth wraps the deterministic mock and lets a test sabotage specific
// image or video synthesis calls.
type flakySynth struct {
	inner *jimeng.Mock

	mu         sync.Mutex
	imageCalls int
	videoCalls int

	emptyImage func(call int) bool
	failVideo  func(call int) bool
}

func (f *flakySynth) GenerateImage(ctx context.Context, req jimeng.ImageRequest) ([]byte, string, error) {
	f.mu.Lock()
	f.imageCalls++
	call := f.imageCalls
	f.mu.Unlock()
	if f.emptyImage != nil && f.emptyImage(call) {
		return nil, "txt", nil
	}
	return f.inner.GenerateImage(ctx, req)
}

func (f *flakySynth) GenerateVideo(ctx context.Context, req jimeng.VideoRequest) ([]byte, string, error) {
	f.mu.Lock()
	f.videoCalls++
	call := f.videoCalls
	f.mu.Unlock()
	if f.failVideo != nil && f.failVideo(call) {
		return nil, "", services.Wrap(services.ErrService, "jimeng", "video", "synthetic backend outage", nil)
	}
	return f.inner.GenerateVideo(ctx, req)
}

// A keyframe rejected twice and accepted on the third try consumes rework
// rounds for its own producer only; every other keyframe runs once.
func TestKeyframeRejectedTwiceAcceptedThird(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegments(3), testsupport.WithMaxAttempts(2))
	p, _ := newTestPipeline(t, cfg)
	assets := testsupport.WriteAssets(t, cfg, "hero.png")

	// Sequential image calls: style frame, then keyframes 0..3 in chain
	// order. Calls 4 and 5 are keyframe 2's first two generations.
	p.synth = &flakySynth{
		inner:      jimeng.NewMock(),
		emptyImage: func(call int) bool { return call == 4 || call == 5 },
	}

	outcome, err := p.Run(context.Background(), RunRequest{
		Prompt:     "a fox explores a neon city at night",
		AssetPaths: assets,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := outcome.Result
	if got := result.Attempts[StepKeyframe(2)]; got != 3 {
		t.Errorf("keyframe 2 attempts = %d, want 3", got)
	}
	for _, k := range []int{0, 1, 3} {
		if got := result.Attempts[StepKeyframe(k)]; got != 1 {
			t.Errorf("keyframe %d attempts = %d, want 1", k, got)
		}
	}
	if got := result.ReworkRounds[StepKeyframeGate(2)]; got != 2 {
		t.Errorf("keyframe 2 gate rework rounds = %d, want 2", got)
	}
	if got := result.TotalReworkRounds(); got != 2 {
		t.Errorf("total rework rounds = %d, want 2", got)
	}
}

// A persistent failure generating segment 2's video fails the run there
// while segment 1's committed work survives.
func TestSegmentFailurePreservesEarlierSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegments(3), testsupport.WithMaxAttempts(2))
	p, registry := newTestPipeline(t, cfg)
	assets := testsupport.WriteAssets(t, cfg, "hero.png")

	// Sequential video calls follow segment order; fail everything after
	// segment 1.
	p.synth = &flakySynth{
		inner:     jimeng.NewMock(),
		failVideo: func(call int) bool { return call >= 2 },
	}

	outcome, err := p.Run(context.Background(), RunRequest{
		Prompt:     "a fox explores a neon city at night",
		AssetPaths: assets,
	})
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !errors.Is(err, services.ErrService) {
		t.Errorf("err = %v, want ErrService class", err)
	}
	result := outcome.Result
	if result.FailedStep != StepVideo(2) {
		t.Errorf("failed step = %s, want %s", result.FailedStep, StepVideo(2))
	}
	if got := result.Attempts[StepVideo(2)]; got != 2 {
		t.Errorf("video 2 attempts = %d, want 2", got)
	}
	if result.StepStates[StepVideo(1)] != engine.Succeeded {
		t.Errorf("video 1 state = %s, want succeeded", result.StepStates[StepVideo(1)])
	}
	if result.StepStates[StepVideoGate(1)] != engine.Succeeded {
		t.Errorf("video 1 gate state = %s, want succeeded", result.StepStates[StepVideoGate(1)])
	}

	rec, recErr := registry.Get(context.Background(), outcome.RunID)
	if recErr != nil {
		t.Fatalf("get run record: %v", recErr)
	}
	if rec.Status != runs.StatusFailed {
		t.Errorf("record status = %s, want %s", rec.Status, runs.StatusFailed)
	}
	if rec.FailedStep != StepVideo(2) {
		t.Errorf("record failed step = %s, want %s", rec.FailedStep, StepVideo(2))
	}
	if rec.Manifest != nil {
		t.Error("failed run should not persist a manifest")
	}
}

func TestRunWritesAuditLogs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegments(3))
	p, _ := newTestPipeline(t, cfg)
	assets := testsupport.WriteAssets(t, cfg, "hero.png")

	outcome, err := p.Run(context.Background(), RunRequest{
		Prompt:     "a quiet harbor morning",
		AssetPaths: assets,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	runDir := filepath.Join(cfg.Paths.RunsDir, outcome.RunID)
	for _, name := range []string{
		StepDescribe + "-prompt.txt",
		StepStoryboardDraft + "-response.json",
		StepReport + "-response.json",
	} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("expected audit file %s: %v", name, err)
		}
	}
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, _ := newTestPipeline(t, cfg)
	assets := testsupport.WriteAssets(t, cfg, "hero.png")

	_, err := p.Run(context.Background(), RunRequest{AssetPaths: assets})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRunRejectsMissingAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, _ := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background(), RunRequest{
		Prompt:     "anything",
		AssetPaths: []string{filepath.Join(cfg.Paths.AssetsDir, "missing.png")},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	run := func(opts ...testsupport.ConfigOption) *runs.Manifest {
		cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{
			testsupport.WithSegments(3), testsupport.WithMaxAttempts(2),
		}, opts...)...)
		p, _ := newTestPipeline(t, cfg)
		assets := testsupport.WriteAssets(t, cfg, "hero.png", "street.png")
		outcome, err := p.Run(context.Background(), RunRequest{
			Prompt:     "a fox explores a neon city at night",
			AssetPaths: assets,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return outcome.Manifest
	}

	sequential := run()
	parallel := run(testsupport.WithParallelDispatch(3))
	if len(sequential.Segments) != len(parallel.Segments) {
		t.Fatalf("segment count differs: %d vs %d", len(sequential.Segments), len(parallel.Segments))
	}
	for i := range sequential.Segments {
		if sequential.Segments[i].VideoArtifactID != parallel.Segments[i].VideoArtifactID {
			t.Errorf("segment %d video differs between dispatch modes", i+1)
		}
	}
}

func TestBuildStepsFormsValidGraph(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, _ := newTestPipeline(t, cfg)

	for _, count := range []int{1, 3, 4} {
		led := ledger.New(logging.NewNop())
		graph, err := stepgraph.Build(p.buildSteps(count, led), Seeds())
		if err != nil {
			t.Fatalf("build graph for %d segments: %v", count, err)
		}
		// ingest..plan = 7, keyframe gen+gate pairs = 2*(count+1),
		// video gen+gate pairs = 2*count, assemble + report = 2.
		want := 7 + 2*(count+1) + 2*count + 2
		if graph.Len() != want {
			t.Errorf("count=%d: graph has %d steps, want %d", count, graph.Len(), want)
		}
		order := graph.Order()
		if order[len(order)-1] != StepReport {
			t.Errorf("count=%d: last step = %s, want %s", count, order[len(order)-1], StepReport)
		}
	}
}

func TestSegmentCountFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegments(3))
	if got := segmentCount(cfg); got != 3 {
		t.Fatalf("segmentCount = %d, want 3", got)
	}
	cfg.Pipeline.TargetDurationSec = 60
	if got := segmentCount(cfg); got != cfg.Pipeline.MaxSegments {
		t.Fatalf("segmentCount = %d, want clamp to %d", got, cfg.Pipeline.MaxSegments)
	}
}
