package pipeline

import (
	"context"

	"reelforge/internal/runlog"
	"reelforge/internal/services"
	"reelforge/internal/services/qwen"
	"reelforge/internal/step"
)

// describeStep extracts the subject's stable visual identity from the
// ingested references.
type describeStep struct {
	describer qwen.Describer
	audit     *runlog.Logger
}

func newDescribeStep(describer qwen.Describer, audit *runlog.Logger) *describeStep {
	return &describeStep{describer: describer, audit: audit}
}

func (s *describeStep) Spec() step.Spec {
	return step.Spec{
		Name:      StepDescribe,
		Reads:     []string{KeyPrompt, KeyAssets},
		Writes:    []string{KeyDescription},
		Retryable: true,
	}
}

func (s *describeStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	prompt, err := stringValue(view, KeyPrompt)
	if err != nil {
		return step.Fatal(err)
	}
	arts, err := artifactsValue(view, KeyAssets)
	if err != nil {
		return step.Fatal(err)
	}

	req := qwen.DescribeRequest{Prompt: prompt, ImagePaths: artifactPaths(arts)}
	s.audit.LogPrompt(view.Run().RunID, StepDescribe, prompt)
	description, err := s.describer.Describe(ctx, req)
	if err != nil {
		return step.Retry(services.Wrap(services.ErrService, StepDescribe, "describe", "vision service call", err))
	}
	s.audit.LogResponse(view.Run().RunID, StepDescribe, map[string]string{"description": description})
	return step.Success(map[string]any{KeyDescription: description})
}
