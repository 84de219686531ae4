package pipeline

import (
	"context"
	"strings"

	"reelforge/internal/ledger"
	"reelforge/internal/plan"
	"reelforge/internal/runlog"
	"reelforge/internal/services"
	"reelforge/internal/services/deepseek"
	"reelforge/internal/step"
)

// storyboardDraftStep asks the drafter for a storyboard honoring the run's
// segment budget. Gate feedback from rejected drafts is folded into the next
// request.
type storyboardDraftStep struct {
	drafter       deepseek.Drafter
	maxSegmentSec float64
	audit         *runlog.Logger
}

func newStoryboardDraftStep(drafter deepseek.Drafter, maxSegmentSec float64, audit *runlog.Logger) *storyboardDraftStep {
	return &storyboardDraftStep{drafter: drafter, maxSegmentSec: maxSegmentSec, audit: audit}
}

func (s *storyboardDraftStep) Spec() step.Spec {
	return step.Spec{
		Name:      StepStoryboardDraft,
		Reads:     []string{KeyPrompt, KeyDescription, KeyStyleBible},
		Writes:    []string{KeyStoryboardRaw},
		Retryable: true,
	}
}

func (s *storyboardDraftStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	prompt, err := stringValue(view, KeyPrompt)
	if err != nil {
		return step.Fatal(err)
	}
	description, err := stringValue(view, KeyDescription)
	if err != nil {
		return step.Fatal(err)
	}
	bible, err := stringValue(view, KeyStyleBible)
	if err != nil {
		return step.Fatal(err)
	}

	info := view.Run()
	req := deepseek.DraftRequest{
		Prompt:            prompt,
		Description:       description,
		StyleBible:        bible,
		TargetDurationSec: info.TargetDurationSec,
		SegmentCount:      info.SegmentCount,
		MaxSegmentSec:     s.maxSegmentSec,
		Feedback:          view.Feedback(),
	}
	s.audit.LogPrompt(info.RunID, StepStoryboardDraft, prompt)
	raw, err := s.drafter.DraftStoryboard(ctx, req)
	if err != nil {
		return step.Retry(services.Wrap(services.ErrService, StepStoryboardDraft, "draft", "storyboard service call", err))
	}
	s.audit.LogResponse(info.RunID, StepStoryboardDraft, map[string]string{"storyboard": raw})
	return step.Success(map[string]any{KeyStoryboardRaw: raw})
}

// storyboardGate validates the draft's structure before anything downstream
// spends render budget on it.
type storyboardGate struct {
	maxSegmentSec float64
}

func newStoryboardGate(maxSegmentSec float64) *storyboardGate {
	return &storyboardGate{maxSegmentSec: maxSegmentSec}
}

func (g *storyboardGate) Spec() step.Spec {
	return step.Spec{
		Name:         StepStoryboardGate,
		Reads:        []string{KeyStoryboardRaw},
		Writes:       []string{KeyStoryboardApproved},
		ReworkTarget: StepStoryboardDraft,
	}
}

func (g *storyboardGate) Invoke(_ context.Context, view step.View) step.Outcome {
	raw, err := stringValue(view, KeyStoryboardRaw)
	if err != nil {
		return step.Fatal(err)
	}
	segments, err := plan.ParseStoryboard([]byte(raw))
	if err != nil {
		return step.Reject("storyboard is not a valid JSON segment array: " + err.Error())
	}
	problems := plan.Validate(segments, plan.Limits{
		MaxSegmentSec: g.maxSegmentSec,
		ExpectedCount: view.Run().SegmentCount,
	})
	if len(problems) > 0 {
		return step.Reject(strings.Join(problems, "; "))
	}
	return step.Success(map[string]any{KeyStoryboardApproved: raw})
}

// planStep turns the approved storyboard into typed segments and locks their
// consistency flags into the ledger for the rest of the run.
type planStep struct {
	ledger *ledger.Ledger
}

func newPlanStep(led *ledger.Ledger) *planStep {
	return &planStep{ledger: led}
}

func (s *planStep) Spec() step.Spec {
	return step.Spec{
		Name:   StepPlan,
		Reads:  []string{KeyStoryboardApproved},
		Writes: []string{KeySegments},
	}
}

func (s *planStep) Invoke(_ context.Context, view step.View) step.Outcome {
	raw, err := stringValue(view, KeyStoryboardApproved)
	if err != nil {
		return step.Fatal(err)
	}
	segments, err := plan.ParseStoryboard([]byte(raw))
	if err != nil {
		// The gate already parsed this text; failing here means the approved
		// value was tampered with between steps.
		return step.Fatal(services.Wrap(services.ErrConfiguration, StepPlan, "plan", "approved storyboard unparsable", err))
	}
	for _, segment := range segments {
		s.ledger.LockFlags(segment.ConsistencyFlags...)
	}
	return step.Success(map[string]any{KeySegments: segments})
}
