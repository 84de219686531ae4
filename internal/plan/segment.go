package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"reelforge/internal/services"
)

// EndAnchor pins the terminal pose of a segment so the next segment can open
// from the same visual state.
type EndAnchor struct {
	Posture      string             `json:"posture"`
	Facing       string             `json:"facing"`
	Expression   string             `json:"expression"`
	PropState    string             `json:"prop_state,omitempty"`
	PositionHint map[string]float64 `json:"position_hint,omitempty"`
}

// Complete reports whether the anchor carries the required pose fields.
func (a EndAnchor) Complete() bool {
	return strings.TrimSpace(a.Posture) != "" &&
		strings.TrimSpace(a.Facing) != "" &&
		strings.TrimSpace(a.Expression) != ""
}

// Segment is one planned shot. Segments are produced once by planning and are
// immutable thereafter; only ledger bindings around them evolve.
type Segment struct {
	Index            int       `json:"index"`
	DurationSec      float64   `json:"duration_sec"`
	Style            string    `json:"style"`
	Shot             string    `json:"shot"`
	Camera           string    `json:"camera"`
	Story            string    `json:"story"`
	PropsBG          []string  `json:"props_bg"`
	EndAnchor        EndAnchor `json:"end_anchor"`
	ConsistencyFlags []string  `json:"consistency_flags,omitempty"`
}

// SegmentCount derives how many segments a run will plan, from the target
// duration and the per-segment ceiling, clamped to maxSegments. Deriving the
// count before planning lets the step graph be built once per run; the
// storyboard gate then holds the planner to it.
func SegmentCount(targetDurationSec int, maxSegmentSec float64, maxSegments int) int {
	if targetDurationSec <= 0 || maxSegmentSec <= 0 {
		return 1
	}
	count := int(math.Ceil(float64(targetDurationSec) / maxSegmentSec))
	if count < 1 {
		count = 1
	}
	if maxSegments > 0 && count > maxSegments {
		count = maxSegments
	}
	return count
}

type rawSegment struct {
	ID               int             `json:"id"`
	DurationSec      float64         `json:"duration_sec"`
	Style            string          `json:"style"`
	Shot             string          `json:"shot"`
	Camera           string          `json:"camera"`
	Story            string          `json:"story"`
	PropsBG          []string        `json:"props_bg"`
	EndAnchor        json.RawMessage `json:"end_anchor"`
	ConsistencyFlags []string        `json:"consistency_flags"`
}

// ParseStoryboard decodes a drafted storyboard (a JSON array of segment
// objects) into Segment values. Anchors arriving as free text instead of
// objects are coerced on a best-effort basis; structural problems surface in
// Validate, not here.
func ParseStoryboard(data []byte) ([]Segment, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "storyboard", "parse", "empty storyboard payload", nil)
	}
	var raw []rawSegment
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, services.Wrap(services.ErrValidation, "storyboard", "parse", "storyboard is not a JSON array of segments", err)
	}

	segments := make([]Segment, 0, len(raw))
	for i, entry := range raw {
		index := entry.ID
		if index == 0 {
			index = i + 1
		}
		segments = append(segments, Segment{
			Index:            index,
			DurationSec:      entry.DurationSec,
			Style:            strings.TrimSpace(entry.Style),
			Shot:             strings.TrimSpace(entry.Shot),
			Camera:           strings.TrimSpace(entry.Camera),
			Story:            strings.TrimSpace(entry.Story),
			PropsBG:          entry.PropsBG,
			EndAnchor:        coerceAnchor(entry.EndAnchor),
			ConsistencyFlags: entry.ConsistencyFlags,
		})
	}
	return segments, nil
}

// coerceAnchor accepts either a JSON object or loose "key: value" text, the
// latter appearing when a drafting model ignores the schema.
func coerceAnchor(raw json.RawMessage) EndAnchor {
	if len(raw) == 0 {
		return EndAnchor{}
	}
	var anchor EndAnchor
	if err := json.Unmarshal(raw, &anchor); err == nil {
		return anchor
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return EndAnchor{}
	}
	fields := map[string]string{}
	normalized := strings.NewReplacer("\n", ",", ";", ",").Replace(text)
	for _, chunk := range strings.Split(normalized, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var key, value string
		if idx := strings.Index(chunk, ":"); idx >= 0 {
			key, value = chunk[:idx], chunk[idx+1:]
		} else if idx := strings.Index(chunk, "="); idx >= 0 {
			key, value = chunk[:idx], chunk[idx+1:]
		} else {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" {
			fields[key] = strings.TrimSpace(value)
		}
	}
	return EndAnchor{
		Posture:    fields["posture"],
		Facing:     fields["facing"],
		Expression: fields["expression"],
		PropState:  fields["prop_state"],
	}
}

// Limits bounds storyboard validation.
type Limits struct {
	MaxSegmentSec float64
	ExpectedCount int
}

// Validate checks planned segments against the run's structural invariants
// and returns every problem found, empty when the storyboard is acceptable.
func Validate(segments []Segment, limits Limits) []string {
	var problems []string
	if len(segments) == 0 {
		return []string{"storyboard contains no segments"}
	}
	if limits.ExpectedCount > 0 && len(segments) != limits.ExpectedCount {
		problems = append(problems, fmt.Sprintf("storyboard has %d segments, run planned %d", len(segments), limits.ExpectedCount))
	}
	ceiling := limits.MaxSegmentSec
	if ceiling <= 0 {
		ceiling = 8
	}
	for i, segment := range segments {
		if segment.Index != i+1 {
			problems = append(problems, fmt.Sprintf("segment %d: index %d breaks 1-based contiguity", i+1, segment.Index))
		}
		if segment.DurationSec < 1 || segment.DurationSec > ceiling {
			problems = append(problems, fmt.Sprintf("segment %d: duration %.2fs outside [1, %.0f]", segment.Index, segment.DurationSec, ceiling))
		}
		if !segment.EndAnchor.Complete() {
			problems = append(problems, fmt.Sprintf("segment %d: end anchor missing posture, facing, or expression", segment.Index))
		}
		if len(segment.PropsBG) == 0 {
			problems = append(problems, fmt.Sprintf("segment %d: requires props_bg entries", segment.Index))
		}
	}
	return problems
}
