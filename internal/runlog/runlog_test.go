package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/logging"
)

func TestLogPromptAndResponse(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := New(dir, logging.NewNop())

	l.LogPrompt("run-1", "storyboard_draft", "draft me a storyboard")
	l.LogResponse("run-1", "storyboard_draft", map[string]any{"segments": 3})

	prompt, err := os.ReadFile(filepath.Join(dir, "run-1", "storyboard_draft-prompt.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(prompt) != "draft me a storyboard" {
		t.Fatalf("prompt = %q", prompt)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "run-1", "storyboard_draft-response.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["segments"] != float64(3) {
		t.Fatalf("response = %v", decoded)
	}
}

func TestWriteFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	l := New(filepath.Join(t.TempDir(), "missing", "\x00bad"), logging.NewNop())
	l.LogPrompt("run-1", "step", "text")
	l.LogPrompt("", "step", "no run id is a no-op")
}
