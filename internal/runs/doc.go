// Package runs persists the run registry: one row per generation run with
// terminal status, retry/rework counters, and on success the manifest
// describing the assembled video.
package runs
