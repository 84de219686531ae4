package pipeline

import (
	"context"
	"strings"

	"reelforge/internal/artifact"
	"reelforge/internal/services"
	"reelforge/internal/services/jimeng"
	"reelforge/internal/step"
)

// styleBibleStep composes the cross-segment style brief. It is deliberately
// deterministic: the bible exists to hold identity and style constant across
// segments, so generating it with a model would defeat its purpose.
type styleBibleStep struct{}

func newStyleBibleStep() *styleBibleStep { return &styleBibleStep{} }

func (s *styleBibleStep) Spec() step.Spec {
	return step.Spec{
		Name:   StepStyleBible,
		Reads:  []string{KeyPrompt, KeyDescription},
		Writes: []string{KeyStyleBible},
	}
}

func (s *styleBibleStep) Invoke(_ context.Context, view step.View) step.Outcome {
	prompt, err := stringValue(view, KeyPrompt)
	if err != nil {
		return step.Fatal(err)
	}
	description, err := stringValue(view, KeyDescription)
	if err != nil {
		return step.Fatal(err)
	}

	intent := strings.TrimSpace(prompt)
	if intent == "" {
		intent = "a whimsical pet short"
	}
	bible := strings.Join([]string{
		"Character: a lively, curious companion; signature accessory always worn; clear expressive eyes.",
		"Color and light: warm gold and cream base palette, starlight-blue accents, soft backlight.",
		"Look and camera: smooth cel shading over clean linework; favor slow dolly-ins and gentle pans.",
		"Setting and props: floating stone steps, mirror lakes, stardust flora; the accessory stays the anchor prop.",
		"Negative constraints: no modern city elements, no heavy machinery, no photoreal grit.",
		"Subject reference: " + strings.TrimSpace(description),
		"User intent: " + intent,
	}, "\n")
	return step.Success(map[string]any{KeyStyleBible: bible})
}

// styleFrameStep renders the canonical subject-in-style image every keyframe
// chains back to.
type styleFrameStep struct {
	synth jimeng.Synthesizer
}

func newStyleFrameStep(synth jimeng.Synthesizer) *styleFrameStep {
	return &styleFrameStep{synth: synth}
}

func (s *styleFrameStep) Spec() step.Spec {
	return step.Spec{
		Name:      StepStyleFrame,
		Reads:     []string{KeyPrompt, KeyDescription, KeyStyleBible, KeyAssets},
		Writes:    []string{KeyStyleFrame},
		Retryable: true,
	}
}

func (s *styleFrameStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	description, err := stringValue(view, KeyDescription)
	if err != nil {
		return step.Fatal(err)
	}
	bible, err := stringValue(view, KeyStyleBible)
	if err != nil {
		return step.Fatal(err)
	}
	arts, err := artifactsValue(view, KeyAssets)
	if err != nil {
		return step.Fatal(err)
	}

	data, ext, err := s.synth.GenerateImage(ctx, jimeng.ImageRequest{
		Prompt:         "Canonical character sheet, full body, neutral pose.\n" + description + "\n" + bible,
		ReferencePaths: artifactPaths(arts),
		Width:          frameWidth,
		Height:         frameHeight,
	})
	if err != nil {
		return step.Retry(services.Wrap(services.ErrService, StepStyleFrame, "generate", "style frame synthesis", err))
	}
	return step.Success(map[string]any{KeyStyleFrame: step.Payload{
		Bytes: data, Kind: artifact.KindImage, Ext: ext, Width: frameWidth, Height: frameHeight,
	}})
}

const (
	frameWidth  = 1280
	frameHeight = 720
)
