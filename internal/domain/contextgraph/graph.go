// Package contextgraph compiles hot phrases into a weighted Aho-Corasick
// automaton and steps through it one decoder unit at a time.
//
// The graph is an arena of states addressed by integer ID. Every arc is an
// index into that arena, so the structure holds no pointers between states
// and can be exported, persisted and shared freely. After Build returns, a
// Graph is read-only and safe for any number of concurrent Step callers;
// each decoder stream carries its own state ID.
//
// Arc storage invariant: the arcs of a state are sorted by unit ID, and the
// fallback arc (unit vocab.Epsilon) is therefore always first when present.
// Step relies on this to find the fallback without a scan.
package contextgraph

import (
	"errors"
	"sort"

	"github.com/corey/hotword/internal/domain/vocab"
)

// Start is the ID of the start state. It is never final and never has a
// fallback arc.
const Start = 0

// noState marks the failure link of the start state.
const noState = -1

var (
	// ErrInconsistentGraph means replaying a phrase through the determinized
	// graph did not land on a final state. It indicates a compiler bug.
	ErrInconsistentGraph = errors.New("inconsistent context graph")
	// ErrCorruptGraph is returned by Import for data that violates a graph
	// invariant.
	ErrCorruptGraph = errors.New("corrupt context graph")
)

// Arc is a weighted transition. Weight is the bias awarded when the arc is
// taken; fallback arcs carry the correction that keeps cumulative scores
// consistent with the shorter match they fall back to.
type Arc struct {
	Unit   int
	Weight float64
	Next   int
}

// IsFallback reports whether the arc is an epsilon fallback arc.
func (a Arc) IsFallback() bool {
	return a.Unit == vocab.Epsilon
}

type state struct {
	arcs  []Arc
	final bool
}

// Graph is a compiled context graph. The zero value (and a nil *Graph) is the
// no-op graph produced when no phrase survives tokenization.
type Graph struct {
	states         []state
	fail           []int          // failure link per state, noState for Start
	fallbackFinals map[int]int    // state -> nearest final state on its failure chain
	phrases        map[int]string // final state -> phrase text
	maxDepth       int            // longest phrase in units, bounds fallback chains
}

func (g *Graph) addState() int {
	g.states = append(g.states, state{})
	return len(g.states) - 1
}

func (g *Graph) addArc(from int, arc Arc) {
	g.states[from].arcs = append(g.states[from].arcs, arc)
}

// sortArcs orders every state's arcs by unit ID.
func (g *Graph) sortArcs() {
	for i := range g.states {
		arcs := g.states[i].arcs
		sort.SliceStable(arcs, func(a, b int) bool { return arcs[a].Unit < arcs[b].Unit })
	}
}

// direct finds the non-fallback arc for unit leaving s.
func (g *Graph) direct(s, unit int) (Arc, bool) {
	arcs := g.states[s].arcs
	i := sort.Search(len(arcs), func(i int) bool { return arcs[i].Unit >= unit })
	if i < len(arcs) && arcs[i].Unit == unit {
		return arcs[i], true
	}
	return Arc{}, false
}

// Empty reports whether this is the no-op graph.
func (g *Graph) Empty() bool {
	return g == nil || len(g.states) == 0
}

// NumStates returns the number of states, including Start.
func (g *Graph) NumStates() int {
	if g == nil {
		return 0
	}
	return len(g.states)
}

// NumArcs returns the number of arcs leaving s, fallback arc included.
func (g *Graph) NumArcs(s int) int {
	return len(g.states[s].arcs)
}

// Arcs returns a copy of the arcs leaving s in storage order.
func (g *Graph) Arcs(s int) []Arc {
	out := make([]Arc, len(g.states[s].arcs))
	copy(out, g.states[s].arcs)
	return out
}

// IsFinal reports whether s completes a phrase.
func (g *Graph) IsFinal(s int) bool {
	return g.states[s].final
}

// Phrase returns the phrase completed at s.
func (g *Graph) Phrase(s int) (string, bool) {
	p, ok := g.phrases[s]
	return p, ok
}

// Failure returns the failure link of s, or -1 for the start state.
func (g *Graph) Failure(s int) int {
	return g.fail[s]
}

// FallbackFinal returns the nearest final state on the failure chain of s.
func (g *Graph) FallbackFinal(s int) (int, bool) {
	f, ok := g.fallbackFinals[s]
	return f, ok
}

// MaxDepth returns the length in units of the longest phrase.
func (g *Graph) MaxDepth() int {
	if g == nil {
		return 0
	}
	return g.maxDepth
}

// Phrases returns every phrase in the graph, sorted.
func (g *Graph) Phrases() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.phrases))
	for _, p := range g.phrases {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats summarizes the size of a graph.
type Stats struct {
	States       int `json:"states"`
	Arcs         int `json:"arcs"`
	FallbackArcs int `json:"fallback_arcs"`
	Finals       int `json:"finals"`
	Phrases      int `json:"phrases"`
	MaxDepth     int `json:"max_depth"`
}

// Stats counts states and arcs.
func (g *Graph) Stats() Stats {
	if g.Empty() {
		return Stats{}
	}
	st := Stats{
		States:   len(g.states),
		Phrases:  len(g.phrases),
		MaxDepth: g.maxDepth,
	}
	for _, s := range g.states {
		st.Arcs += len(s.arcs)
		if len(s.arcs) > 0 && s.arcs[0].IsFallback() {
			st.FallbackArcs++
		}
		if s.final {
			st.Finals++
		}
	}
	return st
}
