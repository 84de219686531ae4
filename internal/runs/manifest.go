package runs

import "reelforge/internal/ledger"

// Manifest is the terminal report of a successful run: everything needed to
// locate the final video and audit how the segments chain together.
type Manifest struct {
	RunID             string           `json:"run_id"`
	Prompt            string           `json:"prompt"`
	FPS               int              `json:"fps"`
	TargetDurationSec int              `json:"target_duration_sec"`
	Segments          []SegmentEntry   `json:"segments"`
	FinalArtifactID   string           `json:"final_artifact_id"`
	FinalPath         string           `json:"final_path,omitempty"`
	Bindings          []ledger.Binding `json:"bindings"`
	ConsistencyFlags  []string         `json:"consistency_flags,omitempty"`
}

// SegmentEntry is one segment's line in the manifest.
type SegmentEntry struct {
	Index           int     `json:"index"`
	DurationSec     float64 `json:"duration_sec"`
	VideoArtifactID string  `json:"video_artifact_id"`
	StartBoundaryID string  `json:"start_boundary_id"`
	EndBoundaryID   string  `json:"end_boundary_id"`
}
