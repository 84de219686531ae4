package pipeline

import (
	"fmt"

	"reelforge/internal/artifact"
	"reelforge/internal/plan"
	"reelforge/internal/services"
	"reelforge/internal/step"
)

// Typed accessors over view values. A type mismatch means two steps disagree
// about a key's contract, which is a wiring bug, not a runtime condition.

func stringValue(view step.View, key string) (string, error) {
	value, err := view.Value(key)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q holds %T, want string", key, value), nil)
	}
	return s, nil
}

func stringsValue(view step.View, key string) ([]string, error) {
	value, err := view.Value(key)
	if err != nil {
		return nil, err
	}
	s, ok := value.([]string)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q holds %T, want []string", key, value), nil)
	}
	return s, nil
}

func artifactValue(view step.View, key string) (artifact.Artifact, error) {
	value, err := view.Value(key)
	if err != nil {
		return artifact.Artifact{}, err
	}
	art, ok := value.(artifact.Artifact)
	if !ok {
		return artifact.Artifact{}, services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q holds %T, want artifact", key, value), nil)
	}
	return art, nil
}

func artifactsValue(view step.View, key string) ([]artifact.Artifact, error) {
	value, err := view.Value(key)
	if err != nil {
		return nil, err
	}
	arts, ok := value.([]artifact.Artifact)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q holds %T, want artifact list", key, value), nil)
	}
	return arts, nil
}

func segmentsValue(view step.View, key string) ([]plan.Segment, error) {
	value, err := view.Value(key)
	if err != nil {
		return nil, err
	}
	segments, ok := value.([]plan.Segment)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "read", fmt.Sprintf("key %q holds %T, want segments", key, value), nil)
	}
	return segments, nil
}

func artifactPaths(arts []artifact.Artifact) []string {
	paths := make([]string, len(arts))
	for i, art := range arts {
		paths[i] = art.Path
	}
	return paths
}
