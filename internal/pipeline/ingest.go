package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/artifact"
	"reelforge/internal/services"
	"reelforge/internal/step"
)

// ingestStep hashes the user's reference images into the artifact store so
// every later stage addresses them by content, not by path.
type ingestStep struct {
	store *artifact.Store
}

func newIngestStep(store *artifact.Store) *ingestStep {
	return &ingestStep{store: store}
}

func (s *ingestStep) Spec() step.Spec {
	return step.Spec{
		Name:   StepIngest,
		Reads:  []string{KeyPrompt, KeyAssetPaths},
		Writes: []string{KeyAssets},
	}
}

func (s *ingestStep) Invoke(ctx context.Context, view step.View) step.Outcome {
	paths, err := stringsValue(view, KeyAssetPaths)
	if err != nil {
		return step.Fatal(err)
	}
	if len(paths) == 0 {
		return step.Fatal(services.Wrap(services.ErrValidation, StepIngest, "ingest", "at least one reference image required", nil))
	}

	arts := make([]artifact.Artifact, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return step.Fatal(services.Wrap(services.ErrValidation, StepIngest, "ingest", "read reference image "+path, err))
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		art, err := s.store.Put(ctx, data, artifact.PutOptions{Kind: artifact.KindImage, Ext: ext})
		if err != nil {
			return step.Fatal(err)
		}
		arts = append(arts, art)
	}
	return step.Success(map[string]any{KeyAssets: arts})
}
