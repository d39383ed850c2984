// Package precondition implements the greedy ordering pass that sorts an
// exchange.Graph's request groups and nodes by weight before the solver
// runs (spec.md §4.G Preconditioner).
package precondition

import (
	"sort"

	"github.com/cyclus-sim/cyclus/internal/exchange"
)

// CommodWeight supplies the per-commodity weight term used in group
// weighting. Callers needing "fill lower-valued commodities first"
// behavior pass weights already transformed per spec.md §4.G ("weights
// may be provided in REVERSE order: replace each w by max(w)+min(w)-w").
type CommodWeight func(commodity string) float64

// Order sorts g's request groups by descending group-weight, and each
// group's nodes by descending node-weight, in place. descending=false
// reverses both orders (spec.md §4.G "or reverse if configured").
func Order(g *exchange.Graph, weight CommodWeight, descending bool) {
	if weight == nil {
		weight = func(string) float64 { return 1 }
	}

	for _, rg := range g.RequestGroups {
		nodeWeight := make(map[*exchange.RequestNode]float64, len(rg.Nodes))
		for _, n := range rg.Nodes {
			p := avgPreference(n)
			nodeWeight[n] = weight(rg.Commodity) * (1 + p/(1+p))
		}
		sort.SliceStable(rg.Nodes, func(i, j int) bool {
			wi, wj := nodeWeight[rg.Nodes[i]], nodeWeight[rg.Nodes[j]]
			if descending {
				return wi > wj
			}
			return wi < wj
		})

		sum := 0.0
		for _, w := range nodeWeight {
			sum += w
		}
		if len(rg.Nodes) > 0 {
			rg.Weight = sum / float64(len(rg.Nodes))
		}
	}

	sort.SliceStable(g.RequestGroups, func(i, j int) bool {
		wi, wj := g.RequestGroups[i].Weight, g.RequestGroups[j].Weight
		if descending {
			return wi > wj
		}
		return wi < wj
	})
}

func avgPreference(n *exchange.RequestNode) float64 {
	if len(n.Arcs) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range n.Arcs {
		sum += a.Req.Req.Preference
	}
	return sum / float64(len(n.Arcs))
}

// ReverseWeights implements spec.md §4.G's reverse-order transform: each
// commodity's weight is replaced by max(w)+min(w)-w, so that
// lower-valued commodities sort as if higher-valued.
func ReverseWeights(weights map[string]float64) map[string]float64 {
	if len(weights) == 0 {
		return weights
	}
	max, min := negInf, posInf
	for _, w := range weights {
		if w > max {
			max = w
		}
		if w < min {
			min = w
		}
	}
	out := make(map[string]float64, len(weights))
	for c, w := range weights {
		out[c] = max + min - w
	}
	return out
}

const (
	posInf = float64(1 << 62)
	negInf = -posInf
)
