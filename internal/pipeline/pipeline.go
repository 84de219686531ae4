package pipeline

import (
	"context"
	"net/http"
	"os"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"reelforge/internal/artifact"
	"reelforge/internal/config"
	"reelforge/internal/engine"
	"reelforge/internal/ledger"
	"reelforge/internal/logging"
	"reelforge/internal/media"
	"reelforge/internal/plan"
	"reelforge/internal/runlog"
	"reelforge/internal/runs"
	"reelforge/internal/services"
	"reelforge/internal/services/deepseek"
	"reelforge/internal/services/jimeng"
	"reelforge/internal/services/qwen"
	"reelforge/internal/step"
	"reelforge/internal/stepgraph"
)

// Pipeline wires the generation services, the artifact store, and the run
// registry into a runnable step graph.
type Pipeline struct {
	cfg      *config.Config
	store    *artifact.Store
	registry *runs.Store
	audit    *runlog.Logger
	logger   *slog.Logger

	describer qwen.Describer
	drafter   deepseek.Drafter
	synth     jimeng.Synthesizer
	joiner    media.Joiner
	verifier  media.Verifier
}

// RunRequest carries the caller's inputs for one generation run.
type RunRequest struct {
	Prompt     string
	AssetPaths []string
}

// Outcome summarizes a finished run for the caller.
type Outcome struct {
	RunID     string
	Status    string
	FinalPath string
	Result    engine.Result
	Manifest  *runs.Manifest
}

// New assembles a pipeline from configuration. Generation backends are the
// live HTTP clients unless services.mock_generation is set.
func New(cfg *config.Config, store *artifact.Store, registry *runs.Store, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		registry: registry,
		audit:    runlog.New(cfg.Paths.RunsDir, logger),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	if cfg.Services.MockGeneration {
		p.describer = qwen.NewMock()
		p.drafter = deepseek.NewMock()
		p.synth = jimeng.NewMock()
		p.joiner = media.NewTextJoiner()
		return p
	}
	p.describer = qwen.NewClient(cfg.Services.Qwen.APIKey,
		qwen.WithBaseURL(cfg.Services.Qwen.BaseURL),
		qwen.WithModel(cfg.Services.Qwen.Model),
		qwen.WithHTTPClient(httpClient(cfg.Services.Qwen.TimeoutSeconds)))
	p.drafter = deepseek.NewClient(cfg.Services.DeepSeek.APIKey,
		deepseek.WithBaseURL(cfg.Services.DeepSeek.BaseURL),
		deepseek.WithModel(cfg.Services.DeepSeek.Model),
		deepseek.WithHTTPClient(httpClient(cfg.Services.DeepSeek.TimeoutSeconds)))
	p.synth = jimeng.NewClient(cfg.Services.Jimeng.APIKey,
		jimeng.WithBaseURL(cfg.Services.Jimeng.BaseURL),
		jimeng.WithHTTPClient(httpClient(cfg.Services.Jimeng.TimeoutSeconds)))
	p.joiner = media.NewFFmpegJoiner(cfg.FFmpegBinary(), p.logger)
	p.verifier = media.NewFFprobeVerifier("ffprobe")
	return p
}

func httpClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		return nil
	}
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

// Seeds returns the keys a run is seeded with before the first dispatch.
func Seeds() []string {
	return []string{KeyPrompt, KeyAssetPaths}
}

// Run executes one generation run end to end: it registers the run, builds
// the step graph for the planned segment count, drives the engine, and
// persists the terminal record.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*Outcome, error) {
	if req.Prompt == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "prompt required", nil)
	}
	if len(req.AssetPaths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "at least one reference image required", nil)
	}
	for _, path := range req.AssetPaths {
		if _, err := os.Stat(path); err != nil {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "reference image not readable: "+path, err)
		}
	}

	count := segmentCount(p.cfg)
	runID := uuid.NewString()
	info := step.RunInfo{
		RunID:             runID,
		Prompt:            req.Prompt,
		TargetDurationSec: p.cfg.Pipeline.TargetDurationSec,
		FPS:               p.cfg.Pipeline.FPS,
		SegmentCount:      count,
	}

	led := ledger.New(p.logger)
	graph, err := stepgraph.Build(p.buildSteps(count, led), Seeds())
	if err != nil {
		return nil, err
	}

	if err := p.registry.Create(ctx, runs.Record{
		RunID:             runID,
		Prompt:            req.Prompt,
		Status:            runs.StatusRunning,
		TargetDurationSec: info.TargetDurationSec,
		FPS:               info.FPS,
		SegmentCount:      count,
	}); err != nil {
		return nil, err
	}

	runCtx := ctx
	cancel := func() {}
	if mins := p.cfg.Engine.RunTimeoutMin; mins > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(mins)*time.Minute)
	}
	defer cancel()

	eng := engine.New(engine.PolicyFromConfig(p.cfg.Engine), p.store, led, p.logger)
	p.logger.Info("run starting",
		logging.String(logging.FieldRunID, runID),
		logging.Int("segments", count))
	result, state := eng.RunWithContext(runCtx, graph, info, map[string]any{
		KeyPrompt:     req.Prompt,
		KeyAssetPaths: req.AssetPaths,
	})

	outcome := &Outcome{RunID: runID, Status: string(result.Status), Result: result}
	if result.Status == engine.StatusSucceeded {
		if value, ok := state.Value(KeyManifest); ok {
			if manifest, ok := value.(runs.Manifest); ok {
				outcome.Manifest = &manifest
				outcome.FinalPath = manifest.FinalPath
			}
		}
	}

	rec := runs.Record{
		RunID:        runID,
		Status:       recordStatus(result.Status),
		FailedStep:   result.FailedStep,
		Attempts:     result.Attempts,
		ReworkRounds: result.ReworkRounds,
		Manifest:     outcome.Manifest,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if err := p.registry.Finish(ctx, rec); err != nil {
		p.logger.Warn("persist run record failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err))
	}

	if result.Status != engine.StatusSucceeded {
		p.logger.Error("run ended",
			logging.String(logging.FieldRunID, runID),
			logging.String("status", string(result.Status)),
			logging.String(logging.FieldStep, result.FailedStep),
			logging.Error(result.Err))
		return outcome, result.Err
	}
	p.logger.Info("run succeeded",
		logging.String(logging.FieldRunID, runID),
		logging.String("output", outcome.FinalPath),
		logging.Int("rework_rounds", result.TotalReworkRounds()))
	return outcome, nil
}

func segmentCount(cfg *config.Config) int {
	return plan.SegmentCount(cfg.Pipeline.TargetDurationSec, cfg.Pipeline.MaxSegmentSec, cfg.Pipeline.MaxSegments)
}

func recordStatus(status engine.Status) string {
	switch status {
	case engine.StatusSucceeded:
		return runs.StatusSucceeded
	case engine.StatusCancelled:
		return runs.StatusCancelled
	default:
		return runs.StatusFailed
	}
}

// buildSteps lays out the full topology for a run with count segments:
// ingest and description up front, storyboard drafting behind its review
// gate, then the keyframe chain, the per-segment video fan-out, assembly,
// and the manifest report.
func (p *Pipeline) buildSteps(count int, led *ledger.Ledger) []step.Interface {
	steps := []step.Interface{
		newIngestStep(p.store),
		newDescribeStep(p.describer, p.audit),
		newStyleBibleStep(),
		newStyleFrameStep(p.synth),
		newStoryboardDraftStep(p.drafter, p.cfg.Pipeline.MaxSegmentSec, p.audit),
		newStoryboardGate(p.cfg.Pipeline.MaxSegmentSec),
		newPlanStep(led),
	}
	for k := 0; k <= count; k++ {
		steps = append(steps,
			newKeyframeStep(k, count, p.synth),
			newKeyframeGate(k, count),
		)
	}
	for j := 1; j <= count; j++ {
		steps = append(steps,
			newVideoStep(j, p.synth),
			newVideoGate(j, led),
		)
	}
	steps = append(steps,
		newAssembleStep(count, p.joiner, p.verifier, p.store, p.cfg.Paths.OutputDir),
		newReportStep(count, led, p.audit),
	)
	return steps
}
