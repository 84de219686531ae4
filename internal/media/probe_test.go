package media

import (
	"context"
	"encoding/json"
	"math"
	"testing"
)

func TestProbeResultHelpers(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720},
			{"index": 1, "codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"filename": "out.mp4", "duration": "23.96", "size": "1048576"}
	}`)
	var result ProbeResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 23.96 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestProbeResultHandlesInvalidNumbers(t *testing.T) {
	result := ProbeResult{Format: ProbeFormat{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN duration, got %v", result.DurationSeconds())
	}
	result = ProbeResult{}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected 0 for empty duration, got %v", result.DurationSeconds())
	}
}

func TestVerifyDurationSkipsWithoutBinary(t *testing.T) {
	v := NewFFprobeVerifier("definitely-not-a-real-ffprobe-binary")
	if err := v.VerifyDuration(context.Background(), "whatever.mp4", 24); err != nil {
		t.Fatalf("expected missing binary to skip verification, got %v", err)
	}
}

func TestVerifyDurationIgnoresZeroTarget(t *testing.T) {
	v := NewFFprobeVerifier("ffprobe")
	if err := v.VerifyDuration(context.Background(), "whatever.mp4", 0); err != nil {
		t.Fatalf("expected zero target to skip verification, got %v", err)
	}
}
