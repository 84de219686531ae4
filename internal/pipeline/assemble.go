package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"reelforge/internal/artifact"
	"reelforge/internal/ledger"
	"reelforge/internal/media"
	"reelforge/internal/runlog"
	"reelforge/internal/runs"
	"reelforge/internal/services"
	"reelforge/internal/step"
)

// assembleStep joins the approved segment videos, in order, into the final
// deliverable. The joined file lands in the output directory and is also
// hashed into the artifact store so the manifest can address it by content.
type assembleStep struct {
	count    int
	joiner   media.Joiner
	verifier media.Verifier
	store    *artifact.Store
	outDir   string
}

func newAssembleStep(count int, joiner media.Joiner, verifier media.Verifier, store *artifact.Store, outDir string) *assembleStep {
	return &assembleStep{count: count, joiner: joiner, verifier: verifier, store: store, outDir: outDir}
}

func (s *assembleStep) Spec() step.Spec {
	reads := []string{KeySegments}
	for j := 1; j <= s.count; j++ {
		reads = append(reads, KeyVideoApproved(j))
	}
	return step.Spec{
		Name:   StepAssemble,
		Reads:  reads,
		Writes: []string{KeyFinalVideo, KeyFinalPath},
	}
}

func (s *assembleStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	paths := make([]string, 0, s.count)
	ext := "mp4"
	for j := 1; j <= s.count; j++ {
		video, err := artifactValue(view, KeyVideoApproved(j))
		if err != nil {
			return step.Fatal(err)
		}
		paths = append(paths, video.Path)
		if video.Ext != "" {
			ext = video.Ext
		}
	}

	outPath := filepath.Join(s.outDir, view.Run().RunID+"."+ext)
	if err := s.joiner.Join(ctx, paths, outPath); err != nil {
		return step.Fatal(err)
	}
	if s.verifier != nil {
		segments, err := segmentsValue(view, KeySegments)
		if err != nil {
			return step.Fatal(err)
		}
		total := 0.0
		for _, seg := range segments {
			total += seg.DurationSec
		}
		if err := s.verifier.VerifyDuration(ctx, outPath, total); err != nil {
			return step.Fatal(err)
		}
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return step.Fatal(services.Wrap(services.ErrStorage, StepAssemble, "assemble", "read joined output", err))
	}
	final, err := s.store.Put(ctx, data, artifact.PutOptions{Kind: artifact.KindVideo, Ext: ext})
	if err != nil {
		return step.Fatal(err)
	}
	return step.Success(map[string]any{
		KeyFinalVideo: final,
		KeyFinalPath:  outPath,
	})
}

// reportStep assembles the terminal manifest and drops a copy next to the
// run's audit logs.
type reportStep struct {
	count  int
	ledger *ledger.Ledger
	audit  *runlog.Logger
}

func newReportStep(count int, led *ledger.Ledger, audit *runlog.Logger) *reportStep {
	return &reportStep{count: count, ledger: led, audit: audit}
}

func (s *reportStep) Spec() step.Spec {
	reads := []string{KeySegments, KeyFinalVideo, KeyFinalPath}
	for k := 0; k <= s.count; k++ {
		reads = append(reads, KeyKeyframeApproved(k))
	}
	for j := 1; j <= s.count; j++ {
		reads = append(reads, KeyVideoApproved(j))
	}
	return step.Spec{
		Name:   StepReport,
		Reads:  reads,
		Writes: []string{KeyManifest},
	}
}

func (s *reportStep) Invoke(_ context.Context, view step.View) step.Outcome {
	segments, err := segmentsValue(view, KeySegments)
	if err != nil {
		return step.Fatal(err)
	}
	final, err := artifactValue(view, KeyFinalVideo)
	if err != nil {
		return step.Fatal(err)
	}
	finalPath, err := stringValue(view, KeyFinalPath)
	if err != nil {
		return step.Fatal(err)
	}
	if len(segments) != s.count {
		return step.Fatal(services.Wrap(services.ErrConfiguration, StepReport, "report",
			fmt.Sprintf("segment count drifted: planned %d, graph built for %d", len(segments), s.count), nil))
	}

	info := view.Run()
	manifest := runs.Manifest{
		RunID:             info.RunID,
		Prompt:            info.Prompt,
		FPS:               info.FPS,
		TargetDurationSec: info.TargetDurationSec,
		FinalArtifactID:   final.ID,
		FinalPath:         finalPath,
		Bindings:          s.ledger.Bindings(),
		ConsistencyFlags:  s.ledger.Flags(),
	}
	for j := 1; j <= s.count; j++ {
		video, err := artifactValue(view, KeyVideoApproved(j))
		if err != nil {
			return step.Fatal(err)
		}
		start, err := artifactValue(view, KeyKeyframeApproved(j-1))
		if err != nil {
			return step.Fatal(err)
		}
		end, err := artifactValue(view, KeyKeyframeApproved(j))
		if err != nil {
			return step.Fatal(err)
		}
		manifest.Segments = append(manifest.Segments, runs.SegmentEntry{
			Index:           j,
			DurationSec:     segments[j-1].DurationSec,
			VideoArtifactID: video.ID,
			StartBoundaryID: start.ID,
			EndBoundaryID:   end.ID,
		})
	}

	s.audit.LogResponse(info.RunID, StepReport, manifest)
	return step.Success(map[string]any{KeyManifest: manifest})
}
