// Package engine schedules and executes step graphs. It owns the retry and
// rework state machines and the commit protocol: step outcomes enter the run
// context, the artifact store, and the consistency ledger only through the
// engine, atomically per step.
package engine
