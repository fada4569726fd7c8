package contextgraph

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// determinize runs subset construction over src. Output states are numbered
// in breadth-first discovery order, so a state's ID never exceeds the ID of
// any state deeper than it; the failure pass depends on that. When several
// arcs on the same unit merge, the merged arc keeps the smallest weight.
// Arcs come out sorted by unit.
func determinize(src *Graph) *Graph {
	dst := &Graph{}
	index := make(map[string]int)
	queue := [][]int{{Start}}
	index[subsetKey(queue[0])] = dst.addState()

	type pending struct {
		weight float64
		dests  []int
	}

	for head := 0; head < len(queue); head++ {
		subset := queue[head]
		byUnit := make(map[int]*pending)
		for _, s := range subset {
			if src.states[s].final {
				dst.states[head].final = true
			}
			for _, arc := range src.states[s].arcs {
				p, ok := byUnit[arc.Unit]
				if !ok {
					p = &pending{weight: math.Inf(1)}
					byUnit[arc.Unit] = p
				}
				p.weight = math.Min(p.weight, arc.Weight)
				p.dests = append(p.dests, arc.Next)
			}
		}

		units := make([]int, 0, len(byUnit))
		for u := range byUnit {
			units = append(units, u)
		}
		sort.Ints(units)

		for _, u := range units {
			p := byUnit[u]
			dests := normalizeSubset(p.dests)
			key := subsetKey(dests)
			next, ok := index[key]
			if !ok {
				next = dst.addState()
				index[key] = next
				queue = append(queue, dests)
			}
			dst.addArc(head, Arc{Unit: u, Weight: p.weight, Next: next})
		}
	}
	return dst
}

func normalizeSubset(s []int) []int {
	sort.Ints(s)
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func subsetKey(s []int) string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}
