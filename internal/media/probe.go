package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"reelforge/internal/services"
)

// ProbeResult represents the parsed output from an ffprobe inspection.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the media container.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

// ProbeFormat captures container-level metadata extracted by ffprobe.
type ProbeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// Probe executes ffprobe against the provided path and decodes the JSON
// response.
func Probe(ctx context.Context, binary string, path string) (ProbeResult, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, services.Wrap(services.ErrConfiguration, "media", "probe", "empty path", nil)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner",
		"-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrService, "media", "probe",
			strings.TrimSpace(string(output)), err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, services.Wrap(services.ErrService, "media", "probe", "parse ffprobe output", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, or NaN when the
// value is unparsable.
func (r ProbeResult) DurationSeconds() float64 {
	return parseProbeFloat(r.Format.Duration)
}

// VideoStreamCount returns the number of video streams discovered.
func (r ProbeResult) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

func parseProbeFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// Verifier checks an assembled video against its planned duration.
type Verifier interface {
	VerifyDuration(ctx context.Context, path string, wantSec float64) error
}

// FFprobeVerifier verifies assembled output with ffprobe. Verification is
// best effort: a missing ffprobe binary skips the check rather than failing
// the run.
type FFprobeVerifier struct {
	binary    string
	tolerance float64
}

// NewFFprobeVerifier constructs a verifier using the given ffprobe binary.
func NewFFprobeVerifier(binary string) *FFprobeVerifier {
	return &FFprobeVerifier{binary: binary, tolerance: 0.25}
}

// VerifyDuration probes the file and compares its container duration with the
// planned total, allowing a relative tolerance for codec rounding.
func (v *FFprobeVerifier) VerifyDuration(ctx context.Context, path string, wantSec float64) error {
	if wantSec <= 0 {
		return nil
	}
	binary := v.binary
	if binary == "" {
		binary = "ffprobe"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil
	}
	result, err := Probe(ctx, binary, path)
	if err != nil {
		return err
	}
	got := result.DurationSeconds()
	if math.IsNaN(got) || got <= 0 {
		return services.Wrap(services.ErrValidation, "media", "verify",
			"assembled output has no readable duration", nil)
	}
	if math.Abs(got-wantSec) > wantSec*v.tolerance {
		return services.Wrap(services.ErrValidation, "media", "verify",
			fmt.Sprintf("assembled duration %.2fs deviates from planned %.2fs", got, wantSec), nil)
	}
	return nil
}
