package dot

import (
	"sort"
	"strings"
)

// VersionVector maps actor to the highest counter observed from that
// actor. Reading an unknown actor yields 0 (spec §3).
type VersionVector struct {
	counters map[string]uint64
}

// NewVersionVector returns an empty version vector.
func NewVersionVector() *VersionVector {
	return &VersionVector{counters: make(map[string]uint64)}
}

// Get returns the high-water counter recorded for actor, or 0 if unknown.
func (vv *VersionVector) Get(actor string) uint64 {
	if vv == nil {
		return 0
	}
	return vv.counters[actor]
}

// Observe raises vv[dot.Actor] to the max of its current value and
// dot.Counter (spec §4.1).
func (vv *VersionVector) Observe(d Dot) {
	if d.Counter > vv.counters[d.Actor] {
		vv.counters[d.Actor] = d.Counter
	}
}

// Dominates reports whether vv has observed d, i.e. vv[d.Actor] >=
// d.Counter (spec §4.1, vvDominates).
func (vv *VersionVector) Dominates(d Dot) bool {
	if vv == nil {
		return false
	}
	return vv.counters[d.Actor] >= d.Counter
}

// Merge returns a new version vector that is the element-wise max of vv
// and other.
func Merge(vv, other *VersionVector) *VersionVector {
	out := NewVersionVector()
	for actor, ctr := range vv.counters {
		out.counters[actor] = ctr
	}
	for actor, ctr := range other.counters {
		if ctr > out.counters[actor] {
			out.counters[actor] = ctr
		}
	}
	return out
}

// Clone returns an independent copy of vv.
func (vv *VersionVector) Clone() *VersionVector {
	out := NewVersionVector()
	for actor, ctr := range vv.counters {
		out.counters[actor] = ctr
	}
	return out
}

// Actors returns every actor recorded in vv, sorted for deterministic
// iteration.
func (vv *VersionVector) Actors() []string {
	actors := make([]string, 0, len(vv.counters))
	for actor := range vv.counters {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	return actors
}

// Set directly assigns the counter recorded for actor. Used when
// reconstructing a version vector from a snapshot.
func (vv *VersionVector) Set(actor string, counter uint64) {
	vv.counters[actor] = counter
}

// String renders vv as "{actor:ctr,actor:ctr}" in actor-sorted order,
// mirroring the teacher's VectorClock.String layout.
func (vv *VersionVector) String() string {
	if vv == nil || len(vv.counters) == 0 {
		return "{}"
	}
	actors := vv.Actors()
	parts := make([]string, 0, len(actors))
	for _, actor := range actors {
		if vv.counters[actor] > 0 {
			parts = append(parts, actor+":"+uitoa(vv.counters[actor]))
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
