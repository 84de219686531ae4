// Package ledger records which artifact satisfies each segment boundary and
// which identity/style constraints are locked for the run.
//
// The core guarantee is adjacency: segment i's end and segment i+1's start
// must resolve to the same artifact id, so consecutive video segments join on
// a shared keyframe. The ledger asserts that equality on every bind but does
// not validate flag semantics; free-text constraints are stored opaque and
// judged by quality-gate steps.
package ledger
