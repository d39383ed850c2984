// Package solver implements the greedy default matcher over a
// precondition-ordered exchange.Graph (spec.md §4.G Solver contract).
package solver

import (
	"sort"

	"github.com/cyclus-sim/cyclus/internal/exchange"
)

// Solve iterates request groups in their (preconditioned) order and,
// within each group, nodes in order, greedily matching each against its
// arcs by ascending cost. Mutual-request cliques are committed or rolled
// back atomically. Returns the trades produced; node states are updated
// in place to Matched/Unmatched (spec.md §4.F node state machine).
func Solve(g *exchange.Graph) []exchange.Trade {
	s := &state{
		g:            g,
		reqRemaining: make(map[*exchange.RequestNode]float64),
		bidRemaining: make(map[*exchange.BidNode]float64),
		reqGroupCap:  make(map[*exchange.RequestGroup]float64),
		bidGroupCap:  make(map[*exchange.BidGroup]float64),
		byID:         make(map[int64]*exchange.RequestGroup),
	}
	for _, rg := range g.RequestGroups {
		s.byID[rg.ID] = rg
		s.reqGroupCap[rg] = groupCapacity(rg.Capacity, rg.Nodes, func(n *exchange.RequestNode) float64 {
			return n.Req.Target.Quantity()
		})
		for _, n := range rg.Nodes {
			s.reqRemaining[n] = n.Req.Target.Quantity()
		}
	}
	for _, bg := range g.BidGroups {
		s.bidGroupCap[bg] = groupCapacity(bg.Capacity, bg.Nodes, func(n *exchange.BidNode) float64 {
			return n.Bid.Offer.Quantity()
		})
		for _, n := range bg.Nodes {
			s.bidRemaining[n] = n.Bid.Offer.Quantity()
		}
	}

	settledCliques := make(map[int64]bool)

	for {
		before := len(s.trades)
		for _, rg := range g.RequestGroups {
			if settledCliques[rg.ID] {
				continue
			}
			if len(rg.CliqueIDs) > 0 {
				s.solveClique(rg, settledCliques)
				continue
			}
			for _, n := range rg.Nodes {
				s.solveNode(n)
			}
		}
		if len(s.trades) == before {
			break
		}
	}

	finalizeStates(g)
	return s.trades
}

type state struct {
	g            *exchange.Graph
	reqRemaining map[*exchange.RequestNode]float64
	bidRemaining map[*exchange.BidNode]float64
	reqGroupCap  map[*exchange.RequestGroup]float64
	bidGroupCap  map[*exchange.BidGroup]float64
	byID         map[int64]*exchange.RequestGroup
	trades       []exchange.Trade
}

// solveNode matches a single request node against its arcs, sorted by
// ascending cost (stable on insertion order for ties). Exclusive
// requests must fill completely or the match is skipped entirely.
func (s *state) solveNode(n *exchange.RequestNode) {
	arcs := append([]*exchange.Arc(nil), n.Arcs...)
	sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].Cost < arcs[j].Cost })

	demand := s.reqRemaining[n]
	if demand <= 0 {
		return
	}

	if n.Req.Exclusive {
		total := 0.0
		for _, a := range arcs {
			total += s.tradeable(n, a.Bid, a)
		}
		if total+1e-9 < demand {
			return // cannot fill completely; skip entirely
		}
	}

	for _, a := range arcs {
		demand = s.reqRemaining[n]
		if demand <= 0 {
			break
		}
		q := s.tradeable(n, a.Bid, a)
		if q <= 0 {
			continue
		}
		s.commit(n, a.Bid, q)
	}
}

// tradeable computes the quantity a single arc could still carry without
// committing it: min(remaining demand, remaining supply, remaining
// group capacities). An exclusive bid is indivisible: if the capped
// quantity would leave any of the bid's remaining supply untraded, the
// arc carries nothing at all, since the entire remaining offer must go
// to one requester or not be used (spec.md §3 Bid "exclusive?").
func (s *state) tradeable(n *exchange.RequestNode, b *exchange.BidNode, a *exchange.Arc) float64 {
	q := s.reqRemaining[n]
	if s.bidRemaining[b] < q {
		q = s.bidRemaining[b]
	}
	if s.reqGroupCap[n.Group] < q {
		q = s.reqGroupCap[n.Group]
	}
	if s.bidGroupCap[b.Group] < q {
		q = s.bidGroupCap[b.Group]
	}
	if a.Capacity < q {
		q = a.Capacity
	}
	if q < 0 {
		q = 0
	}
	if b.Bid.Exclusive && q > 0 && q+1e-9 < s.bidRemaining[b] {
		return 0
	}
	return q
}

func (s *state) commit(n *exchange.RequestNode, b *exchange.BidNode, q float64) {
	s.reqRemaining[n] -= q
	s.bidRemaining[b] -= q
	s.reqGroupCap[n.Group] -= q
	s.bidGroupCap[b.Group] -= q
	n.Matched += q
	b.Matched += q
	s.trades = append(s.trades, exchange.Trade{Request: n.Req, Bid: b.Bid, Quantity: q})
}

// solveClique attempts every node of every group named in rg's clique
// (plus rg itself) in a scratch copy of remaining-state; if every
// request in the clique can be filled completely the attempt is
// committed for real, otherwise nothing in the clique is touched this
// pass (spec.md §4.G "commit the entire clique atomically or roll back").
func (s *state) solveClique(rg *exchange.RequestGroup, settled map[int64]bool) {
	groupIDs := append([]int64{rg.ID}, rg.CliqueIDs...)
	var groups []*exchange.RequestGroup
	for _, id := range groupIDs {
		if g, ok := s.byID[id]; ok {
			groups = append(groups, g)
		}
	}

	scratch := s.snapshot()
	var attempt []exchange.Trade
	allFilled := true
	for _, g := range groups {
		for _, n := range g.Nodes {
			demand := scratch.reqRemaining[n]
			if demand <= 1e-9 {
				continue
			}
			arcs := append([]*exchange.Arc(nil), n.Arcs...)
			sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].Cost < arcs[j].Cost })
			for _, a := range arcs {
				remaining := scratch.reqRemaining[n]
				if remaining <= 0 {
					break
				}
				q := scratch.tradeable(n, a.Bid, a)
				if q <= 0 {
					continue
				}
				scratch.commit(n, a.Bid, q)
				attempt = append(attempt, exchange.Trade{Request: n.Req, Bid: a.Bid.Bid, Quantity: q})
			}
			if scratch.reqRemaining[n] > 1e-9 {
				allFilled = false
			}
		}
	}

	for _, id := range groupIDs {
		settled[id] = true
	}
	if !allFilled {
		return // roll back: scratch is discarded, s is untouched
	}

	s.reqRemaining = scratch.reqRemaining
	s.bidRemaining = scratch.bidRemaining
	s.reqGroupCap = scratch.reqGroupCap
	s.bidGroupCap = scratch.bidGroupCap
	s.trades = append(s.trades, attempt...)
	for _, g := range groups {
		for _, n := range g.Nodes {
			n.Matched = n.Req.Target.Quantity() - s.reqRemaining[n]
		}
	}
}

func (s *state) snapshot() *state {
	cp := &state{
		g:            s.g,
		reqRemaining: make(map[*exchange.RequestNode]float64, len(s.reqRemaining)),
		bidRemaining: make(map[*exchange.BidNode]float64, len(s.bidRemaining)),
		reqGroupCap:  make(map[*exchange.RequestGroup]float64, len(s.reqGroupCap)),
		bidGroupCap:  make(map[*exchange.BidGroup]float64, len(s.bidGroupCap)),
		byID:         s.byID,
	}
	for k, v := range s.reqRemaining {
		cp.reqRemaining[k] = v
	}
	for k, v := range s.bidRemaining {
		cp.bidRemaining[k] = v
	}
	for k, v := range s.reqGroupCap {
		cp.reqGroupCap[k] = v
	}
	for k, v := range s.bidGroupCap {
		cp.bidGroupCap[k] = v
	}
	return cp
}

func groupCapacity[T any](capacity float64, nodes []T, qty func(T) float64) float64 {
	if capacity > 0 {
		return capacity
	}
	sum := 0.0
	for _, n := range nodes {
		sum += qty(n)
	}
	return sum
}

// finalizeStates marks every node Matched or Unmatched once the solver
// has reached its fixed point (spec.md §4.F "Terminal after solve").
func finalizeStates(g *exchange.Graph) {
	for _, rg := range g.RequestGroups {
		for _, n := range rg.Nodes {
			if n.Matched > 0 {
				n.State = exchange.StateMatched
			} else {
				n.State = exchange.StateUnmatched
			}
		}
	}
	for _, bg := range g.BidGroups {
		for _, n := range bg.Nodes {
			if n.Matched > 0 {
				n.State = exchange.StateMatched
			} else {
				n.State = exchange.StateUnmatched
			}
		}
	}
}
