package contextgraph

import "github.com/corey/hotword/internal/domain/vocab"

// compileFailureLinks turns the determinized graph into an Aho-Corasick
// automaton with weighted fallback arcs (Mohri, "Weighted automata
// algorithms", failure transitions).
//
// A breadth-first pass computes, per state, the failure link and the
// cumulative weight of the path from Start. A second pass in ID order then
// records fallback finals and installs the fallback arcs. IDs are in BFS
// order, so every failure target has already been handled when a state
// looks at it, including whether it received a fallback arc of its own.
func (g *Graph) compileFailureLinks() {
	n := len(g.states)
	fail := make([]int, n)
	total := make([]float64, n)
	fail[Start] = noState

	visited := make([]bool, n)
	visited[Start] = true
	queue := []int{Start}
	for head := 0; head < len(queue); head++ {
		s := queue[head]
		for _, arc := range g.states[s].arcs {
			next := arc.Next
			if visited[next] {
				continue
			}
			visited[next] = true
			total[next] = total[s] + arc.Weight
			for f := fail[s]; f != noState; f = fail[f] {
				if fa, ok := g.direct(f, arc.Unit); ok {
					fail[next] = fa.Next
					break
				}
			}
			queue = append(queue, next)
		}
	}

	g.fail = fail
	g.fallbackFinals = make(map[int]int)
	for s := 0; s < n; s++ {
		f := fail[s]
		if f == noState {
			continue
		}
		if g.states[f].final {
			g.fallbackFinals[s] = f
		} else if ff, ok := g.fallbackFinals[f]; ok {
			// A non-final failure target can still lead to a shorter phrase
			// further down the chain.
			g.fallbackFinals[s] = ff
		}
		if g.states[f].final && len(g.states[f].arcs) == 0 {
			continue
		}
		if g.states[s].final && f == Start {
			continue
		}

		weight := total[f] - total[s]
		if g.states[s].final {
			weight = 0
		}
		arcs := g.states[s].arcs
		g.states[s].arcs = append([]Arc{{Unit: vocab.Epsilon, Weight: weight, Next: f}}, arcs...)
	}
}
