package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Position names which side of a segment a boundary artifact anchors.
type Position string

const (
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

// Binding records that a segment's named boundary is satisfied by an artifact.
type Binding struct {
	Segment    int      `json:"segment"`
	Position   Position `json:"position"`
	ArtifactID string   `json:"artifact_id"`
}

type boundaryKey struct {
	segment  int
	position Position
}

// Ledger tracks, per run, the chain of segment boundary artifacts and the
// locked identity/style constraints that must hold across segments. It stores
// state and asserts boundary equality; it never judges flag semantics.
type Ledger struct {
	logger *slog.Logger

	mu       sync.Mutex
	bindings map[boundaryKey]string
	flags    []string
	flagSet  map[string]struct{}
}

// New constructs an empty per-run ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{
		logger:   logging.NewComponentLogger(logger, "ledger"),
		bindings: make(map[boundaryKey]string),
		flagSet:  make(map[string]struct{}),
	}
}

// BindBoundary records that the segment's boundary is satisfied by the given
// artifact. Adjacent segments share one boundary artifact: segment i's end and
// segment i+1's start must carry the same id. Binding a boundary whose
// counterpart (or a prior binding of the same boundary) holds a different id
// is a ledger violation. In practice equality holds by construction, since one
// keyframe step writes the key both neighbors read; the check is defensive.
func (l *Ledger) BindBoundary(segment int, position Position, artifactID string) error {
	if segment < 1 {
		return services.Wrap(services.ErrConfiguration, "ledger", "bind", fmt.Sprintf("segment index %d out of range", segment), nil)
	}
	if position != PositionStart && position != PositionEnd {
		return services.Wrap(services.ErrConfiguration, "ledger", "bind", fmt.Sprintf("unknown position %q", position), nil)
	}
	if artifactID == "" {
		return services.Wrap(services.ErrConfiguration, "ledger", "bind", "artifact id is empty", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := boundaryKey{segment: segment, position: position}
	if existing, ok := l.bindings[key]; ok && existing != artifactID {
		return services.Wrap(services.ErrLedger, "ledger", "bind",
			fmt.Sprintf("segment %d %s already bound to %s, rebind to %s refused", segment, position, existing, artifactID), nil)
	}

	if counterpart, ok := l.bindings[counterpartKey(key)]; ok && counterpart != artifactID {
		return services.Wrap(services.ErrLedger, "ledger", "bind",
			fmt.Sprintf("adjacent boundary mismatch at segment %d %s: %s vs %s", segment, position, counterpart, artifactID), nil)
	}

	l.bindings[key] = artifactID
	l.logger.Debug("boundary bound",
		logging.Int(logging.FieldSegment, segment),
		logging.String("position", string(position)),
		logging.String(logging.FieldArtifactID, artifactID),
	)
	return nil
}

// counterpartKey maps segment i's end to segment i+1's start and vice versa.
func counterpartKey(key boundaryKey) boundaryKey {
	if key.position == PositionEnd {
		return boundaryKey{segment: key.segment + 1, position: PositionStart}
	}
	return boundaryKey{segment: key.segment - 1, position: PositionEnd}
}

// LockFlags accumulates identity/style constraints. Flags are opaque strings
// declared from segment 1 onward; duplicates collapse, order of first
// appearance is preserved.
func (l *Ledger) LockFlags(flags ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, flag := range flags {
		if flag == "" {
			continue
		}
		if _, ok := l.flagSet[flag]; ok {
			continue
		}
		l.flagSet[flag] = struct{}{}
		l.flags = append(l.flags, flag)
	}
}

// Flags returns the locked constraint set in first-appearance order.
func (l *Ledger) Flags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.flags))
	copy(out, l.flags)
	return out
}

// CheckFlags returns the candidate flags not already locked. The result is
// advisory: a quality gate decides whether an unlocked addition contradicts
// earlier constraints, the ledger does not.
func (l *Ledger) CheckFlags(candidates []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var unlocked []string
	for _, flag := range candidates {
		if flag == "" {
			continue
		}
		if _, ok := l.flagSet[flag]; !ok {
			unlocked = append(unlocked, flag)
		}
	}
	return unlocked
}

// Bindings returns a snapshot of all boundary bindings ordered by segment then
// position (start before end).
func (l *Ledger) Bindings() []Binding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Binding, 0, len(l.bindings))
	for key, id := range l.bindings {
		out = append(out, Binding{Segment: key.segment, Position: key.position, ArtifactID: id})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Segment != out[j].Segment {
			return out[i].Segment < out[j].Segment
		}
		return out[i].Position == PositionStart && out[j].Position == PositionEnd
	})
	return out
}

// Boundary returns the artifact bound at a segment boundary, if any.
func (l *Ledger) Boundary(segment int, position Position) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.bindings[boundaryKey{segment: segment, position: position}]
	return id, ok
}
