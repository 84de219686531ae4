package jimeng

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Mock is a deterministic Synthesizer for offline runs and tests. Outputs
// are small text payloads describing the request, so every stage downstream
// (hashing, storage, assembly) exercises real bytes without a render farm.
type Mock struct{}

// NewMock constructs a mock synthesizer.
func NewMock() *Mock { return &Mock{} }

// GenerateImage returns a deterministic text payload standing in for an
// image.
func (m *Mock) GenerateImage(_ context.Context, req ImageRequest) ([]byte, string, error) {
	lines := []string{
		"[image]",
		"prompt: " + strings.TrimSpace(req.Prompt),
		fmt.Sprintf("size: %dx%d", req.Width, req.Height),
	}
	for _, path := range req.ReferencePaths {
		lines = append(lines, "reference: "+filepath.Base(path))
	}
	return []byte(strings.Join(lines, "\n")), "txt", nil
}

// GenerateVideo returns a deterministic text payload standing in for a video
// segment.
func (m *Mock) GenerateVideo(_ context.Context, req VideoRequest) ([]byte, string, error) {
	lines := []string{
		"[video]",
		"prompt: " + strings.TrimSpace(req.Prompt),
		fmt.Sprintf("duration_sec: %.2f fps: %d", req.DurationSec, req.FPS),
		"first_frame: " + filepath.Base(req.FirstFramePath),
		"last_frame: " + filepath.Base(req.LastFramePath),
	}
	return []byte(strings.Join(lines, "\n")), "txt", nil
}
