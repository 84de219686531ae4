package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Joiner concatenates rendered segment files into the final output file, in
// order.
type Joiner interface {
	Join(ctx context.Context, segmentPaths []string, outPath string) error
}

// FFmpegJoiner concatenates video segments losslessly with ffmpeg's concat
// demuxer.
type FFmpegJoiner struct {
	binary string
	logger *slog.Logger
}

// NewFFmpegJoiner constructs a joiner around the given ffmpeg binary.
func NewFFmpegJoiner(binary string, logger *slog.Logger) *FFmpegJoiner {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegJoiner{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "media"),
	}
}

// Join writes a concat list beside the output and runs ffmpeg over it.
func (j *FFmpegJoiner) Join(ctx context.Context, segmentPaths []string, outPath string) error {
	if len(segmentPaths) == 0 {
		return services.Wrap(services.ErrConfiguration, "assemble", "join", "no segments to join", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "assemble", "join", "create output directory", err)
	}

	listPath := outPath + ".concat.txt"
	if err := os.WriteFile(listPath, ConcatList(segmentPaths), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "assemble", "join", "write concat list", err)
	}
	defer os.Remove(listPath)

	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath}
	cmd := exec.CommandContext(ctx, j.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	j.logger.Debug("running ffmpeg", logging.String("args", strings.Join(args, " ")))
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, lastLine(detail))
		}
		return services.Wrap(services.ErrService, "assemble", "join", "ffmpeg concat failed", err)
	}
	return nil
}

// ConcatList renders the ffmpeg concat demuxer input for the given files.
// Single quotes inside paths are escaped the way the demuxer expects.
func ConcatList(paths []string) []byte {
	var b bytes.Buffer
	for _, path := range paths {
		escaped := strings.ReplaceAll(path, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return b.Bytes()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// TextJoiner concatenates the textual stand-in segments produced by mock
// synthesis, separated by segment headers. It keeps offline runs end-to-end
// inspectable without ffmpeg installed.
type TextJoiner struct{}

// NewTextJoiner constructs a mock joiner.
func NewTextJoiner() *TextJoiner { return &TextJoiner{} }

// Join concatenates the segment files as text.
func (j *TextJoiner) Join(_ context.Context, segmentPaths []string, outPath string) error {
	if len(segmentPaths) == 0 {
		return services.Wrap(services.ErrConfiguration, "assemble", "join", "no segments to join", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "assemble", "join", "create output directory", err)
	}
	var b bytes.Buffer
	for i, path := range segmentPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return services.Wrap(services.ErrStorage, "assemble", "join", "read segment "+path, err)
		}
		fmt.Fprintf(&b, "=== segment %d ===\n", i+1)
		b.Write(data)
		if !bytes.HasSuffix(data, []byte("\n")) {
			b.WriteByte('\n')
		}
	}
	if err := os.WriteFile(outPath, b.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "assemble", "join", "write output", err)
	}
	return nil
}
