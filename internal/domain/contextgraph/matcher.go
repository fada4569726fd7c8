package contextgraph

import (
	"fmt"

	"github.com/corey/hotword/internal/domain/vocab"
)

// Step advances from state on unit and returns the next state, the score
// delta to add to the hypothesis, and every phrase completed by this unit.
//
// When state has no arc for unit, Step follows fallback arcs (adding their
// correction weights) until some state on the failure chain accepts unit or
// the chain ends; in the latter case the result is Start with the
// accumulated corrections. Landing on a state with no outgoing arcs also
// returns Start, since nothing can continue from there.
//
// Phrases completed by the arc taken after fallback hops are reported too.
// Feeding A B C against ABD and BC reports BC on C even though the stream
// had to fall back out of ABD first. Decoders that only want matches along
// an unbroken path should ignore Matched when the step crossed a fallback arc.
//
// Step panics if unit is vocab.Epsilon or state is out of range. On the
// no-op graph it always returns (Start, 0, nil).
func (g *Graph) Step(state, unit int) (int, float64, []string) {
	if g.Empty() {
		return Start, 0, nil
	}
	if unit == vocab.Epsilon {
		panic("contextgraph: Step called with the epsilon unit")
	}
	if state < 0 || state >= len(g.states) {
		panic(fmt.Sprintf("contextgraph: state %d out of range [0,%d)", state, len(g.states)))
	}

	var score float64
	cur := state
	// Every fallback hop moves to a strictly shallower state, so the chain
	// is at most maxDepth long.
	for hop := 0; hop <= g.maxDepth; hop++ {
		if arc, ok := g.direct(cur, unit); ok {
			score += arc.Weight
			matched := g.matchesAt(arc.Next)
			if len(g.states[arc.Next].arcs) == 0 {
				return Start, score, matched
			}
			return arc.Next, score, matched
		}
		arcs := g.states[cur].arcs
		if len(arcs) == 0 || !arcs[0].IsFallback() {
			return Start, score, nil
		}
		score += arcs[0].Weight
		cur = arcs[0].Next
	}
	panic(fmt.Sprintf("contextgraph: fallback chain from state %d exceeds depth %d", state, g.maxDepth))
}

// matchesAt lists the phrase completed at s, if any, followed by the shorter
// phrases reachable through its fallback finals.
func (g *Graph) matchesAt(s int) []string {
	var out []string
	if g.states[s].final {
		out = append(out, g.phrases[s])
	}
	for f, ok := g.fallbackFinals[s]; ok; f, ok = g.fallbackFinals[f] {
		out = append(out, g.phrases[f])
	}
	return out
}

// StepResult is the outcome of one Cursor.Feed call.
type StepResult struct {
	Unit    int      `json:"unit"`
	Next    int      `json:"next"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

// Cursor tracks one decoder stream through a graph. It is not safe for
// concurrent use; give each stream its own cursor.
type Cursor struct {
	graph *Graph
	state int
	score float64
}

// NewCursor starts a stream at Start.
func NewCursor(g *Graph) *Cursor {
	return &Cursor{graph: g}
}

// Feed steps the cursor on unit.
func (c *Cursor) Feed(unit int) StepResult {
	next, score, matched := c.graph.Step(c.state, unit)
	c.state = next
	c.score += score
	return StepResult{Unit: unit, Next: next, Score: score, Matched: matched}
}

// FeedAll feeds units in order and returns one result per unit.
func (c *Cursor) FeedAll(units []int) []StepResult {
	out := make([]StepResult, len(units))
	for i, u := range units {
		out[i] = c.Feed(u)
	}
	return out
}

// State returns the current state.
func (c *Cursor) State() int { return c.state }

// Score returns the sum of all score deltas since the last Reset.
func (c *Cursor) Score() float64 { return c.score }

// Reset moves the cursor back to Start and clears the score.
func (c *Cursor) Reset() {
	c.state = Start
	c.score = 0
}
