// Package dot implements the causality primitives of the replicated
// document: dots, version vectors, and the per-replica clock that mints
// them.
//
// A Dot is the smallest unit of causality in the system: a (actor,
// counter) pair. Dots are totally ordered by counter ascending, then actor
// ascending, and that order is what every CRDT merge rule in this module
// (register, object, sequence) resolves conflicts with.
package dot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dot is a single causally-unique operation identifier.
type Dot struct {
	Actor   string
	Counter uint64
}

// Zero is the dot that can never be minted (counter 0); useful as a
// sentinel "no dot yet" value.
var Zero = Dot{}

// IsZero reports whether d is the zero value.
func (d Dot) IsZero() bool {
	return d.Counter == 0 && d.Actor == ""
}

// Compare orders dots by counter ascending, then actor ascending
// lexicographically, per spec §3. It returns -1, 0, or 1.
func Compare(a, b Dot) int {
	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Actor, b.Actor)
}

// Greater reports whether a strictly follows b in the global dot order.
func Greater(a, b Dot) bool {
	return Compare(a, b) > 0
}

// Equal reports whether a and b identify the same operation.
func Equal(a, b Dot) bool {
	return a.Actor == b.Actor && a.Counter == b.Counter
}

// ID returns the canonical string form of a dot, used as a stable
// sequence-element key (spec §3, "Element id").
func (d Dot) ID() string {
	return fmt.Sprintf("%s:%d", d.Actor, d.Counter)
}

// ParseID parses the canonical string form produced by Dot.ID.
func ParseID(id string) (Dot, error) {
	idx := strings.LastIndexByte(id, ':')
	if idx < 0 {
		return Dot{}, fmt.Errorf("dot: malformed element id %q", id)
	}
	actor, counterStr := id[:idx], id[idx+1:]
	if actor == "" {
		return Dot{}, fmt.Errorf("dot: empty actor in element id %q", id)
	}
	counter, err := strconv.ParseUint(counterStr, 10, 64)
	if err != nil {
		return Dot{}, fmt.Errorf("dot: malformed counter in element id %q: %w", id, err)
	}
	return Dot{Actor: actor, Counter: counter}, nil
}

// NewActor mints a fresh, globally-unique actor identifier for a forked
// replica. Reusing an existing actor across two live replicas breaks
// convergence (spec §4.1), so callers forking a replica should always
// call this rather than reuse the origin's actor.
func NewActor() string {
	return uuid.NewString()
}
