// Package stepgraph derives a dependency graph from step read/write
// declarations and validates it at construction time.
package stepgraph
