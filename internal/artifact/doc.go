// Package artifact stores image and video payloads addressed by content hash
// so repeated derivations of the same bytes are cache hits instead of new
// writes.
//
// Each entry is a payload file plus a JSON metadata sidecar, written with
// temp-file/rename so readers never observe partial content. Concurrent Put
// calls for the same hash are serialized by an in-process mutex and a
// per-hash file lock, which also keeps multiple processes sharing one store
// directory safe. Artifacts are immutable once written and survive the run
// for post-failure inspection and cross-run reuse.
package artifact
