// Package pipeline defines the generation steps and assembles them into a
// runnable graph: reference-image ingest, scene description, style bible and
// style frame, a reviewed storyboard, a chain of boundary keyframes, the
// per-segment video fan-out, and final assembly with a manifest report.
//
// Each step declares the keys it reads and writes; the topology is derived
// from those declarations by the stepgraph package and driven by the engine.
// Quality gates sit between a producer and its consumers and can send the
// producer back for rework with feedback.
package pipeline
