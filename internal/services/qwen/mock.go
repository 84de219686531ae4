package qwen

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Mock is a deterministic Describer for offline runs and tests. The
// description is a pure function of the request.
type Mock struct{}

// NewMock constructs a mock describer.
func NewMock() *Mock { return &Mock{} }

// Describe synthesizes a plausible description from file names and the
// prompt, without touching the network or the image bytes.
func (m *Mock) Describe(_ context.Context, req DescribeRequest) (string, error) {
	intent := strings.TrimSpace(req.Prompt)
	if intent == "" {
		intent = "a friendly whimsical scene"
	}
	lines := []string{
		"Subject: a single pet with a warm golden coat and bright, expressive eyes.",
		fmt.Sprintf("References: %d image(s): %s.", len(req.ImagePaths), baseNames(req.ImagePaths)),
		"Signature details: soft rounded ears, a light scarf around the neck, compact build.",
		"User intent: " + intent + ".",
	}
	return strings.Join(lines, "\n"), nil
}

func baseNames(paths []string) string {
	if len(paths) == 0 {
		return "none"
	}
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	return strings.Join(names, ", ")
}
