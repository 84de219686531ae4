package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Mock is a deterministic Drafter for offline runs and tests. It honors the
// requested segment count and duration ceiling so the draft always survives
// storyboard validation.
type Mock struct{}

// NewMock constructs a mock drafter.
func NewMock() *Mock { return &Mock{} }

type mockAnchor struct {
	Posture      string             `json:"posture"`
	Facing       string             `json:"facing"`
	Expression   string             `json:"expression"`
	PropState    string             `json:"prop_state"`
	PositionHint map[string]float64 `json:"position_hint"`
}

type mockSegment struct {
	ID               int        `json:"id"`
	DurationSec      float64    `json:"duration_sec"`
	Style            string     `json:"style"`
	Shot             string     `json:"shot"`
	Camera           string     `json:"camera"`
	Story            string     `json:"story"`
	PropsBG          []string   `json:"props_bg"`
	EndAnchor        mockAnchor `json:"end_anchor"`
	ConsistencyFlags []string   `json:"consistency_flags"`
}

var stageStyles = []string{
	"soft watercolor morning light",
	"storybook afternoon glow",
	"dusky pastel twilight",
	"starlit dream haze",
}

var stagePostures = []string{
	"seated, head tilted",
	"mid-stride trot",
	"standing alert, tail up",
	"curled up, settling down",
}

// DraftStoryboard builds a storyboard deterministically from the request.
func (m *Mock) DraftStoryboard(_ context.Context, req DraftRequest) (string, error) {
	if req.SegmentCount < 1 {
		return "", errors.New("deepseek draft: segment count must be positive")
	}
	origin := strings.TrimSpace(req.Prompt)
	if origin == "" {
		origin = "a whimsical journey"
	}
	perSegment := float64(req.TargetDurationSec) / float64(req.SegmentCount)
	if req.MaxSegmentSec > 0 && perSegment > req.MaxSegmentSec {
		perSegment = req.MaxSegmentSec
	}
	if perSegment < 1 {
		perSegment = 1
	}
	perSegment = math.Round(perSegment*100) / 100

	segments := make([]mockSegment, 0, req.SegmentCount)
	for i := 1; i <= req.SegmentCount; i++ {
		facing := "three-quarter right"
		expression := "excited grin"
		if i == req.SegmentCount {
			facing = "straight ahead"
			expression = "content, gentle"
		}
		segments = append(segments, mockSegment{
			ID:          i,
			DurationSec: perSegment,
			Style:       stageStyles[(i-1)%len(stageStyles)],
			Shot:        fmt.Sprintf("scene %d of %q", i, origin),
			Camera:      "slow dolly-in",
			Story:       fmt.Sprintf("beat %d: the pet moves deeper into %s", i, origin),
			PropsBG:     []string{"light scarf", "warm bokeh background"},
			EndAnchor: mockAnchor{
				Posture:      stagePostures[(i-1)%len(stagePostures)],
				Facing:       facing,
				Expression:   expression,
				PropState:    "scarf trailing",
				PositionHint: map[string]float64{"x": math.Mod(0.35+float64(i)*0.1, 0.65), "y": 0.4},
			},
			ConsistencyFlags: []string{
				"scarf visible",
				"golden coat, warm tone",
				"soft background glow",
			},
		})
	}
	encoded, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("deepseek draft: encode mock storyboard: %w", err)
	}
	return string(encoded), nil
}
