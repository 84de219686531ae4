// Package runlog keeps a per-run audit trail of the prompts sent to and the
// responses received from generation services.
package runlog
