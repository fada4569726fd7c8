package contextgraph

// entry is a phrase that survived tokenization.
type entry struct {
	text   string
	units  []int
	weight float64
}

// buildTrie lays every entry out as its own chain of fresh states hanging off
// Start. Prefixes are not shared here; determinize merges them. Each arc of a
// chain carries the entry's weight and the chain's last state is final.
func buildTrie(entries []entry) *Graph {
	g := &Graph{}
	g.addState()
	for _, e := range entries {
		cur := Start
		for _, unit := range e.units {
			next := g.addState()
			g.addArc(cur, Arc{Unit: unit, Weight: e.weight, Next: next})
			cur = next
		}
		if cur != Start {
			g.states[cur].final = true
		}
	}
	return g
}
