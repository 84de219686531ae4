package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"reelforge/internal/artifact"
	"reelforge/internal/ledger"
	"reelforge/internal/services"
	"reelforge/internal/services/jimeng"
	"reelforge/internal/step"
)

// videoStep renders segment j conditioned on its approved first and last
// keyframes. Video steps for different segments share no keys, so they are
// eligible for concurrent dispatch.
type videoStep struct {
	index int // 1-based segment index
	synth jimeng.Synthesizer
}

func newVideoStep(index int, synth jimeng.Synthesizer) *videoStep {
	return &videoStep{index: index, synth: synth}
}

func (s *videoStep) Spec() step.Spec {
	return step.Spec{
		Name: StepVideo(s.index),
		Reads: []string{
			KeySegments,
			KeyKeyframeApproved(s.index - 1),
			KeyKeyframeApproved(s.index),
		},
		Writes:    []string{KeyVideo(s.index)},
		Retryable: true,
		Parallel:  true,
	}
}

func (s *videoStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	segments, err := segmentsValue(view, KeySegments)
	if err != nil {
		return step.Fatal(err)
	}
	first, err := artifactValue(view, KeyKeyframeApproved(s.index-1))
	if err != nil {
		return step.Fatal(err)
	}
	last, err := artifactValue(view, KeyKeyframeApproved(s.index))
	if err != nil {
		return step.Fatal(err)
	}
	seg := segments[s.index-1]

	var b strings.Builder
	fmt.Fprintf(&b, "Segment %d.\nShot: %s\nCamera: %s\nStory: %s\nStyle: %s\n", seg.Index, seg.Shot, seg.Camera, seg.Story, seg.Style)
	if len(seg.PropsBG) > 0 {
		fmt.Fprintf(&b, "Props/background: %s\n", strings.Join(seg.PropsBG, ", "))
	}
	if len(seg.ConsistencyFlags) > 0 {
		fmt.Fprintf(&b, "Keep consistent: %s\n", strings.Join(seg.ConsistencyFlags, ", "))
	}
	for _, item := range view.Feedback() {
		fmt.Fprintf(&b, "Fix: %s\n", item)
	}

	data, ext, err := s.synth.GenerateVideo(ctx, jimeng.VideoRequest{
		Prompt:         b.String(),
		FirstFramePath: first.Path,
		LastFramePath:  last.Path,
		DurationSec:    seg.DurationSec,
		FPS:            view.Run().FPS,
	})
	if err != nil {
		return step.Retry(services.Wrap(services.ErrService, StepVideo(s.index), "generate", "video synthesis", err))
	}
	return step.Success(map[string]any{KeyVideo(s.index): step.Payload{
		Bytes: data, Kind: artifact.KindVideo, Ext: ext, Width: frameWidth, Height: frameHeight,
	}})
}

// videoGate checks that segment j's rendered video actually honors its
// boundary frames and that the segment claims no consistency flag the plan
// never locked. Textual mock payloads embed the conditioning frame ids, so
// the boundary check is exact offline; binary outputs from the live service
// cannot be inspected cheaply and pass on existence alone.
type videoGate struct {
	index  int
	ledger *ledger.Ledger
}

func newVideoGate(index int, led *ledger.Ledger) *videoGate {
	return &videoGate{index: index, ledger: led}
}

func (g *videoGate) Spec() step.Spec {
	return step.Spec{
		Name: StepVideoGate(g.index),
		Reads: []string{
			KeySegments,
			KeyVideo(g.index),
			KeyKeyframeApproved(g.index - 1),
			KeyKeyframeApproved(g.index),
		},
		Writes:       []string{KeyVideoApproved(g.index)},
		ReworkTarget: StepVideo(g.index),
	}
}

func (g *videoGate) Invoke(_ context.Context, view step.View) step.Outcome {
	segments, err := segmentsValue(view, KeySegments)
	if err != nil {
		return step.Fatal(err)
	}
	if unlocked := g.ledger.CheckFlags(segments[g.index-1].ConsistencyFlags); len(unlocked) > 0 {
		return step.Fatal(services.Wrap(services.ErrConfiguration, StepVideoGate(g.index), "review",
			fmt.Sprintf("segment %d claims unlocked consistency flags %v", g.index, unlocked), nil))
	}
	video, err := artifactValue(view, KeyVideo(g.index))
	if err != nil {
		return step.Fatal(err)
	}
	first, err := artifactValue(view, KeyKeyframeApproved(g.index-1))
	if err != nil {
		return step.Fatal(err)
	}
	last, err := artifactValue(view, KeyKeyframeApproved(g.index))
	if err != nil {
		return step.Fatal(err)
	}

	data, err := os.ReadFile(video.Path)
	if err != nil {
		return step.Reject(fmt.Sprintf("segment %d video unreadable: %v", g.index, err))
	}
	if len(data) == 0 {
		return step.Reject(fmt.Sprintf("segment %d video is empty", g.index))
	}
	if utf8.Valid(data) {
		content := string(data)
		if !strings.Contains(content, first.ID) || !strings.Contains(content, last.ID) {
			return step.Reject(fmt.Sprintf("segment %d video does not reference its boundary frames", g.index))
		}
	}
	return step.Success(map[string]any{KeyVideoApproved(g.index): video})
}
