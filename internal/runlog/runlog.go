package runlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/logging"
)

// Logger persists per-step prompts and responses under
// runs/<run_id>/<step>-prompt.txt and <step>-response.json. Writes are
// fire-and-forget: a failed audit write is logged, never surfaced, so it can
// never fail a run.
type Logger struct {
	baseDir string
	logger  *slog.Logger
}

// New constructs a run logger rooted at the runs directory.
func New(runsDir string, logger *slog.Logger) *Logger {
	return &Logger{
		baseDir: runsDir,
		logger:  logging.NewComponentLogger(logger, "runlog"),
	}
}

// LogPrompt persists the raw prompt text sent for a step.
func (l *Logger) LogPrompt(runID, stepName, prompt string) {
	l.write(runID, stepName+"-prompt.txt", []byte(prompt))
}

// LogResponse persists the structured response received for a step.
func (l *Logger) LogResponse(runID, stepName string, response any) {
	encoded, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		l.logger.Warn("encode step response", logging.String(logging.FieldStep, stepName), logging.Error(err))
		return
	}
	l.write(runID, stepName+"-response.json", encoded)
}

// RunDir returns the directory holding one run's step logs.
func (l *Logger) RunDir(runID string) string {
	return filepath.Join(l.baseDir, runID)
}

func (l *Logger) write(runID, name string, data []byte) {
	if l == nil || strings.TrimSpace(runID) == "" {
		return
	}
	dir := l.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.logger.Warn("create run log dir", logging.String(logging.FieldRunID, runID), logging.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		l.logger.Warn("write run log", logging.String(logging.FieldRunID, runID), logging.Error(err))
	}
}
