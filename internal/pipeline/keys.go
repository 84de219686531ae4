package pipeline

import "fmt"

// Run context keys. Seed keys are supplied at run construction; every other
// key is written by exactly one step.
const (
	// KeyPrompt is the user's prompt (seed).
	KeyPrompt = "prompt"
	// KeyAssetPaths lists the reference image files (seed).
	KeyAssetPaths = "asset_paths"

	// KeyAssets holds the ingested reference artifacts.
	KeyAssets = "assets"
	// KeyDescription is the subject description.
	KeyDescription = "description"
	// KeyStyleBible is the cross-segment style brief.
	KeyStyleBible = "style_bible"
	// KeyStyleFrame is the canonical subject-in-style reference image.
	KeyStyleFrame = "style_frame"
	// KeyStoryboardRaw is the drafted storyboard JSON text.
	KeyStoryboardRaw = "storyboard_raw"
	// KeyStoryboardApproved is the storyboard JSON text after gate approval.
	KeyStoryboardApproved = "storyboard_approved"
	// KeySegments holds the planned segments with locked consistency flags.
	KeySegments = "segments"
	// KeyFinalVideo is the assembled deliverable artifact.
	KeyFinalVideo = "final_video"
	// KeyFinalPath is the assembled deliverable's location in the output dir.
	KeyFinalPath = "final_path"
	// KeyManifest is the terminal run manifest.
	KeyManifest = "manifest"
)

// KeyKeyframe names keyframe k's raw artifact key, k in [0, n].
func KeyKeyframe(k int) string { return fmt.Sprintf("keyframe_%d", k) }

// KeyKeyframeApproved names keyframe k's gate-approved artifact key.
func KeyKeyframeApproved(k int) string { return fmt.Sprintf("keyframe_ok_%d", k) }

// KeyVideo names segment j's raw video artifact key, j in [1, n].
func KeyVideo(j int) string { return fmt.Sprintf("video_%d", j) }

// KeyVideoApproved names segment j's gate-approved video artifact key.
func KeyVideoApproved(j int) string { return fmt.Sprintf("video_ok_%d", j) }

// Step names.
const (
	StepIngest          = "ingest"
	StepDescribe        = "describe"
	StepStyleBible      = "style_bible"
	StepStyleFrame      = "style_frame"
	StepStoryboardDraft = "storyboard_draft"
	StepStoryboardGate  = "storyboard_review"
	StepPlan            = "plan"
	StepAssemble        = "assemble"
	StepReport          = "report"
)

// StepKeyframe names keyframe k's generation step.
func StepKeyframe(k int) string { return fmt.Sprintf("keyframe_%d_gen", k) }

// StepKeyframeGate names keyframe k's review gate.
func StepKeyframeGate(k int) string { return fmt.Sprintf("keyframe_%d_review", k) }

// StepVideo names segment j's video generation step.
func StepVideo(j int) string { return fmt.Sprintf("video_%d_gen", j) }

// StepVideoGate names segment j's video review gate.
func StepVideoGate(j int) string { return fmt.Sprintf("video_%d_review", j) }
