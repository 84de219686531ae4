// Package step defines the unit of work the execution engine schedules: a
// declared read/write contract plus an Invoke that maps a read-only view to a
// proposed state update or a typed failure.
//
// Steps never mutate run state directly. Quality gates are ordinary steps
// whose spec names a rework target; their Reject outcome sends that producer
// back through the engine's rework loop.
package step
