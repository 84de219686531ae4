// Package plan models storyboard segments: bounded-duration shots with end
// anchors that keep adjacent segments visually continuous.
//
// It owns parsing drafted storyboards into Segment values, deriving the
// per-run segment count from the target duration, and the validation rules
// the storyboard quality gate applies before planning commits.
package plan
