package dot

import "fmt"

// Clock is a mutable (actor, counter) pair that mints fresh dots. Each
// replica holds exactly one primary clock, and its actor must be unique
// across the peer set (spec §3).
type Clock struct {
	actor   string
	counter uint64
}

// NewClock creates a clock for the given actor starting at counter 0.
func NewClock(actor string) (*Clock, error) {
	if actor == "" {
		return nil, fmt.Errorf("dot: clock actor must not be empty")
	}
	return &Clock{actor: actor}, nil
}

// Actor returns the clock's actor.
func (c *Clock) Actor() string {
	return c.actor
}

// Counter returns the clock's current counter without minting.
func (c *Clock) Counter() uint64 {
	return c.counter
}

// Next increments the clock's counter and returns a fresh dot (spec
// §4.1).
func (c *Clock) Next() Dot {
	c.counter++
	return Dot{Actor: c.actor, Counter: c.counter}
}

// FastForward raises the clock's counter to at least target, without
// minting a dot. Used when inserting a sequence element whose fresh dot
// must exceed an existing sibling's dot (spec §4.3).
func (c *Clock) FastForward(target uint64) {
	if target > c.counter {
		c.counter = target
	}
}

// Observe raises the clock to at least d.Counter when d shares the
// clock's actor; it never changes the clock for a foreign actor. This
// keeps invariant 6 (counter >= max own-actor counter in the document)
// intact after a merge or deserialize that introduces own-actor dots the
// clock had not yet minted (e.g. loading a snapshot written by a past
// incarnation of this same actor).
func (c *Clock) Observe(d Dot) {
	if d.Actor == c.actor && d.Counter > c.counter {
		c.counter = d.Counter
	}
}

// Clone returns an independent copy of the clock.
func (c *Clock) Clone() *Clock {
	return &Clock{actor: c.actor, counter: c.counter}
}

// Fork returns a brand new clock for a different, freshly-minted actor,
// as required by spec §4.1: forking must never reuse the origin actor.
func (c *Clock) Fork() *Clock {
	return &Clock{actor: NewActor()}
}
