package step

import "reelforge/internal/artifact"

// Payload is a binary output a step hands back for the engine to persist in
// the artifact store at commit time. Steps that store artifacts themselves
// return artifact.Artifact values instead.
type Payload struct {
	Bytes  []byte
	Kind   artifact.Kind
	Ext    string
	Width  int
	Height int
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeFatal
	outcomeReject
)

// Outcome is the result of one step invocation. It is never partially
// applied: the engine commits all of Updates or none of it.
type Outcome struct {
	kind     outcomeKind
	Updates  map[string]any
	Err      error
	Feedback string
}

// Success proposes a state update mapping declared write keys to values.
func Success(updates map[string]any) Outcome {
	return Outcome{kind: outcomeSuccess, Updates: updates}
}

// Retry reports a transient failure worth another attempt.
func Retry(err error) Outcome {
	return Outcome{kind: outcomeRetry, Err: err}
}

// Fatal reports an unrecoverable failure.
func Fatal(err error) Outcome {
	return Outcome{kind: outcomeFatal, Err: err}
}

// Reject is emitted by quality gates: the producing step should be re-run
// with this feedback appended to its view.
func Reject(feedback string) Outcome {
	return Outcome{kind: outcomeReject, Feedback: feedback}
}

func (o Outcome) IsSuccess() bool { return o.kind == outcomeSuccess }
func (o Outcome) IsRetry() bool   { return o.kind == outcomeRetry }
func (o Outcome) IsFatal() bool   { return o.kind == outcomeFatal }
func (o Outcome) IsReject() bool  { return o.kind == outcomeReject }
