// Package diag is the observability side channel for planning internals.
// Conditions that are useful to see but are not failures (seed nudges,
// bridged corridor gaps, solver iteration counts) are recorded here instead
// of being folded into result types. A nil *Collector discards everything.
package diag

import "sync"

// Event kinds.
const (
	KindSeedNudged       = "seed_nudged"
	KindSeedUnresolved   = "seed_unresolved"
	KindCorridorBridged  = "corridor_bridged"
	KindCorridorMerged   = "corridor_merged"
	KindSolverIterations = "solver_iterations"
	KindAvoidanceAdjust  = "avoidance_adjusted"
)

type Event struct {
	Kind   string  `json:"kind"`
	Robot  string  `json:"robot,omitempty"`
	Detail string  `json:"detail,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// Collector accumulates events. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Record(e Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Count returns how many events of the given kind were recorded.
func (c *Collector) Count(kind string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Reset discards all recorded events.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
