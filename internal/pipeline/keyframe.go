package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"reelforge/internal/artifact"
	"reelforge/internal/ledger"
	"reelforge/internal/plan"
	"reelforge/internal/services"
	"reelforge/internal/services/jimeng"
	"reelforge/internal/step"
)

// keyframeStep renders keyframe k. Keyframe 0 opens segment 1; keyframe k>0
// closes segment k and, below the last index, opens segment k+1. Each
// keyframe chains on the approved previous one so the subject cannot drift
// between segments.
type keyframeStep struct {
	index int
	count int // segment count n; keyframes run 0..n
	synth jimeng.Synthesizer
}

func newKeyframeStep(index, count int, synth jimeng.Synthesizer) *keyframeStep {
	return &keyframeStep{index: index, count: count, synth: synth}
}

func (s *keyframeStep) Spec() step.Spec {
	reads := []string{KeyDescription, KeyStyleBible, KeySegments, KeyStyleFrame}
	if s.index > 0 {
		reads = append(reads, KeyKeyframeApproved(s.index-1))
	}
	return step.Spec{
		Name:      StepKeyframe(s.index),
		Reads:     reads,
		Writes:    []string{KeyKeyframe(s.index)},
		Retryable: true,
	}
}

func (s *keyframeStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	description, err := stringValue(view, KeyDescription)
	if err != nil {
		return step.Fatal(err)
	}
	bible, err := stringValue(view, KeyStyleBible)
	if err != nil {
		return step.Fatal(err)
	}
	segments, err := segmentsValue(view, KeySegments)
	if err != nil {
		return step.Fatal(err)
	}
	styleFrame, err := artifactValue(view, KeyStyleFrame)
	if err != nil {
		return step.Fatal(err)
	}

	references := []string{styleFrame.Path}
	if s.index > 0 {
		prev, err := artifactValue(view, KeyKeyframeApproved(s.index-1))
		if err != nil {
			return step.Fatal(err)
		}
		references = append(references, prev.Path)
	}

	prompt := s.composePrompt(description, bible, segments, view.Feedback())
	data, ext, err := s.synth.GenerateImage(ctx, jimeng.ImageRequest{
		Prompt:         prompt,
		ReferencePaths: references,
		Width:          frameWidth,
		Height:         frameHeight,
	})
	if err != nil {
		return step.Retry(services.Wrap(services.ErrService, StepKeyframe(s.index), "generate", "keyframe synthesis", err))
	}
	return step.Success(map[string]any{KeyKeyframe(s.index): step.Payload{
		Bytes: data, Kind: artifact.KindImage, Ext: ext, Width: frameWidth, Height: frameHeight,
	}})
}

func (s *keyframeStep) composePrompt(description, bible string, segments []plan.Segment, feedback []string) string {
	brief := bible
	if len(brief) > 160 {
		brief = brief[:160]
	}
	var b strings.Builder
	if s.index == 0 {
		seg := segments[0]
		fmt.Fprintf(&b, "Opening keyframe for segment 1.\nShot: %s\nStyle: %s\n", seg.Shot, seg.Style)
	} else {
		seg := segments[s.index-1]
		anchor := seg.EndAnchor
		fmt.Fprintf(&b, "Keyframe closing segment %d.\n", s.index)
		fmt.Fprintf(&b, "Anchor: posture %s; facing %s; expression %s", anchor.Posture, anchor.Facing, anchor.Expression)
		if anchor.PropState != "" {
			fmt.Fprintf(&b, "; prop %s", anchor.PropState)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Style: %s\n", seg.Style)
	}
	fmt.Fprintf(&b, "Subject: %s\nStyle brief: %s\n", description, brief)
	if len(feedback) > 0 {
		b.WriteString("Earlier attempts were rejected; fix all of these:\n")
		for _, item := range feedback {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

// keyframeGate approves keyframe k and, by committing the approval, binds it
// into the ledger as the shared boundary of its adjacent segments.
type keyframeGate struct {
	index int
	count int
}

func newKeyframeGate(index, count int) *keyframeGate {
	return &keyframeGate{index: index, count: count}
}

func (g *keyframeGate) Spec() step.Spec {
	key := KeyKeyframeApproved(g.index)
	var boundaries []step.Boundary
	if g.index == 0 {
		boundaries = []step.Boundary{{Segment: 1, Position: ledger.PositionStart, Key: key}}
	} else if g.index < g.count {
		boundaries = []step.Boundary{
			{Segment: g.index, Position: ledger.PositionEnd, Key: key},
			{Segment: g.index + 1, Position: ledger.PositionStart, Key: key},
		}
	} else {
		boundaries = []step.Boundary{{Segment: g.count, Position: ledger.PositionEnd, Key: key}}
	}
	return step.Spec{
		Name:         StepKeyframeGate(g.index),
		Reads:        []string{KeyKeyframe(g.index)},
		Writes:       []string{key},
		Boundaries:   boundaries,
		ReworkTarget: StepKeyframe(g.index),
	}
}

func (g *keyframeGate) Invoke(_ context.Context, view step.View) step.Outcome {
	art, err := artifactValue(view, KeyKeyframe(g.index))
	if err != nil {
		return step.Fatal(err)
	}
	info, err := os.Stat(art.Path)
	if err != nil {
		return step.Reject(fmt.Sprintf("keyframe %d artifact unreadable: %v", g.index, err))
	}
	if info.Size() == 0 {
		return step.Reject(fmt.Sprintf("keyframe %d artifact is empty", g.index))
	}
	return step.Success(map[string]any{KeyKeyframeApproved(g.index): art})
}
