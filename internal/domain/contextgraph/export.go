package contextgraph

import (
	"fmt"
	"io"

	"github.com/corey/hotword/internal/ports"
)

// Export copies the graph into plain data for storage.
func (g *Graph) Export() *ports.GraphData {
	if g.Empty() {
		return &ports.GraphData{}
	}
	data := &ports.GraphData{
		States:         make([]ports.StateData, len(g.states)),
		Failures:       make([]int, len(g.fail)),
		FallbackFinals: make(map[int]int, len(g.fallbackFinals)),
		MaxDepth:       g.maxDepth,
	}
	copy(data.Failures, g.fail)
	for s, f := range g.fallbackFinals {
		data.FallbackFinals[s] = f
	}
	for i, st := range g.states {
		sd := ports.StateData{Final: st.final, Phrase: g.phrases[i]}
		sd.Arcs = make([]ports.ArcData, len(st.arcs))
		for j, a := range st.arcs {
			sd.Arcs[j] = ports.ArcData{Unit: a.Unit, Weight: a.Weight, Next: a.Next}
		}
		data.States[i] = sd
	}
	return data
}

// Import rebuilds a graph from exported data, checking every invariant Step
// depends on. Violations return an error wrapping ErrCorruptGraph.
//
// States are numbered breadth-first, so every failure link points to a lower
// ID and a fallback arc must follow the failure link of its state. That keeps
// every fallback chain finite; its length must also fit within MaxDepth.
func Import(data *ports.GraphData) (*Graph, error) {
	if data == nil || len(data.States) == 0 {
		return &Graph{}, nil
	}
	n := len(data.States)
	if len(data.Failures) != n {
		return nil, fmt.Errorf("%w: %d failure links for %d states", ErrCorruptGraph, len(data.Failures), n)
	}
	if data.Failures[Start] != noState {
		return nil, fmt.Errorf("%w: start state has failure link %d", ErrCorruptGraph, data.Failures[Start])
	}
	if data.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: max depth %d", ErrCorruptGraph, data.MaxDepth)
	}

	g := &Graph{
		states:         make([]state, n),
		fail:           make([]int, n),
		fallbackFinals: make(map[int]int, len(data.FallbackFinals)),
		phrases:        make(map[int]string),
		maxDepth:       data.MaxDepth,
	}
	copy(g.fail, data.Failures)
	chain := make([]int, n) // fallback hops from a state to one without a fallback arc

	for i, sd := range data.States {
		if sd.Final != (sd.Phrase != "") {
			return nil, fmt.Errorf("%w: state %d final=%v with phrase %q", ErrCorruptGraph, i, sd.Final, sd.Phrase)
		}
		if i == Start && sd.Final {
			return nil, fmt.Errorf("%w: start state is final", ErrCorruptGraph)
		}
		if i != Start && (g.fail[i] < 0 || g.fail[i] >= i) {
			return nil, fmt.Errorf("%w: state %d failure link %d out of range", ErrCorruptGraph, i, g.fail[i])
		}
		arcs := make([]Arc, len(sd.Arcs))
		for j, a := range sd.Arcs {
			if a.Next < 0 || a.Next >= n {
				return nil, fmt.Errorf("%w: state %d arc %d targets %d", ErrCorruptGraph, i, j, a.Next)
			}
			if a.Unit < 0 {
				return nil, fmt.Errorf("%w: state %d arc %d has unit %d", ErrCorruptGraph, i, j, a.Unit)
			}
			// Strictly increasing units: deterministic, and a fallback arc
			// can only sit in slot 0.
			if j > 0 && a.Unit <= sd.Arcs[j-1].Unit {
				return nil, fmt.Errorf("%w: state %d arcs not strictly sorted by unit", ErrCorruptGraph, i)
			}
			arcs[j] = Arc{Unit: a.Unit, Weight: a.Weight, Next: a.Next}
		}
		if len(arcs) > 0 && arcs[0].IsFallback() {
			if i == Start {
				return nil, fmt.Errorf("%w: start state has a fallback arc", ErrCorruptGraph)
			}
			if arcs[0].Next != g.fail[i] {
				return nil, fmt.Errorf("%w: state %d falls back to %d, failure link is %d",
					ErrCorruptGraph, i, arcs[0].Next, g.fail[i])
			}
			chain[i] = chain[g.fail[i]] + 1
			if chain[i] > g.maxDepth {
				return nil, fmt.Errorf("%w: state %d fallback chain exceeds max depth %d", ErrCorruptGraph, i, g.maxDepth)
			}
		}
		g.states[i] = state{arcs: arcs, final: sd.Final}
		if sd.Final {
			g.phrases[i] = sd.Phrase
		}
	}

	for s, f := range data.FallbackFinals {
		if s < 0 || s >= n || f < 0 || f >= n || !g.states[f].final {
			return nil, fmt.Errorf("%w: fallback final %d -> %d", ErrCorruptGraph, s, f)
		}
		g.fallbackFinals[s] = f
	}
	return g, nil
}

// WriteDot writes the graph in Graphviz dot format. Final states are double
// circles, fallback arcs are dashed. symbol maps a unit to its label; nil
// prints unit IDs.
func (g *Graph) WriteDot(w io.Writer, symbol func(unit int) string) error {
	if symbol == nil {
		symbol = func(unit int) string { return fmt.Sprint(unit) }
	}
	if _, err := fmt.Fprintln(w, "digraph context {\n  rankdir=LR;"); err != nil {
		return err
	}
	for i, st := range g.statesOrEmpty() {
		shape := "circle"
		if st.final {
			shape = "doublecircle"
		}
		label := fmt.Sprint(i)
		if p, ok := g.phrases[i]; ok {
			label = fmt.Sprintf("%d %s", i, p)
		}
		if _, err := fmt.Fprintf(w, "  %d [shape=%s, label=%q];\n", i, shape, label); err != nil {
			return err
		}
		for _, a := range st.arcs {
			if a.IsFallback() {
				_, err := fmt.Fprintf(w, "  %d -> %d [style=dashed, label=\"ε/%g\"];\n", i, a.Next, a.Weight)
				if err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, "  %d -> %d [label=%q];\n", i, a.Next, fmt.Sprintf("%s/%g", symbol(a.Unit), a.Weight)); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func (g *Graph) statesOrEmpty() []state {
	if g == nil {
		return nil
	}
	return g.states
}
