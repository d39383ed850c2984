// Package exchange implements the bipartite request/bid graph that
// mediates commodity trading between Traders each time step (spec.md
// §4.F): per-commodity RequestPortfolios and BidPortfolios are grouped,
// connected by compatibility-gated arcs, and carried forward to the
// preconditioner and solver.
package exchange

import (
	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/resource"
)

// Trader is the capability interface a domain agent implements to
// participate in the exchange (spec.md §4.E "Trader mixin"). It is
// defined here, not in package agent, so agent stays free of a
// dependency on exchange; any type embedding *agent.Facility (or
// Institution/Region) that also implements Trader is dispatched on by
// the time driver via a type assertion.
type Trader interface {
	agent.Entity
	// GetRequests returns this trader's demand for the tick, grouped by
	// commodity; may be empty.
	GetRequests() []RequestPortfolio
	// GetBids returns this trader's supply for the tick in response to
	// rfqs (the requests currently on the table for the commodities this
	// trader can offer); may be empty.
	GetBids(rfqs []RequestPortfolio) []BidPortfolio
	// RemoveResource draws exactly t.Quantity (within resource.Epsilon)
	// from this trader's storage to satisfy a matched trade.
	RemoveResource(t Trade) (resource.Resource, error)
	// AcceptTrades delivers matched (Trade, Resource) pairs to this
	// trader as the requesting side.
	AcceptTrades(matches []Match)
}

// Match pairs a settled Trade with the concrete Resource the bidder
// produced for it, as delivered to the requester's AcceptTrades.
type Match struct {
	Trade    Trade
	Resource resource.Resource
}

// Request is one line item of demand: a target resource (quantity +
// compatibility template) for a commodity, with an optional preference
// and exclusivity flag (spec.md §3 Request).
type Request struct {
	ID         int64
	Commodity  string
	Target     resource.Resource
	Exclusive  bool
	Preference float64 // default 0; higher preference is more desirable
	GroupID    int64
}

// Bid is one line item of supply: an offered resource for a commodity,
// carried in a BidPortfolio (spec.md §3 Bid). Exclusive marks the offer
// as indivisible: the solver may not split it across more than one
// requester in a single time step (spec.md §3 "exclusive?", scenario S2).
type Bid struct {
	ID        int64
	Commodity string
	Offer     resource.Resource
	Exclusive bool
	GroupID   int64
}

// RequestPortfolio groups a trader's Requests for one commodity plus any
// group-level capacity constraint and mutual-request clique membership.
type RequestPortfolio struct {
	Requester Trader
	Commodity string
	Requests  []Request
	Capacity  float64 // <=0 means unconstrained
	// Clique lists the ids of other RequestGroups that must be filled in
	// full, atomically, alongside this one, or not at all.
	Clique []int64
}

// BidPortfolio groups a trader's Bids for one commodity plus an optional
// group-level capacity constraint.
type BidPortfolio struct {
	Bidder    Trader
	Commodity string
	Bids      []Bid
	Capacity  float64 // <=0 means unconstrained
}

// NodeState is the per-exchange-node state machine (spec.md §4.F):
// Pending until the solver commits or exhausts it.
type NodeState int

const (
	StatePending NodeState = iota
	StateMatched
	StateUnmatched
)

func (s NodeState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateMatched:
		return "Matched"
	default:
		return "Unmatched"
	}
}

// RequestNode is a Request wrapped in graph-local bookkeeping: the arcs
// connecting it to compatible BidNodes, and its running match state.
type RequestNode struct {
	Req     Request
	Group   *RequestGroup
	Arcs    []*Arc
	State   NodeState
	Matched float64
	order   int // insertion order, for stable tie-breaking
}

// BidNode is a Bid wrapped in graph-local bookkeeping.
type BidNode struct {
	Bid     Bid
	Group   *BidGroup
	Arcs    []*Arc
	State   NodeState
	Matched float64
	order   int
}

// Arc connects a RequestNode to a BidNode the graph found compatible.
// Cost is `1 / (1 + preference)`; capacity is the pairwise min of the
// node quantities at construction time (spec.md §4.F step 3).
type Arc struct {
	Req      *RequestNode
	Bid      *BidNode
	Capacity float64
	Cost     float64
}

// RequestGroup is the (trader, commodity) grouping of RequestNodes with
// its capacity constraint and clique membership (spec.md §4.F step 2).
type RequestGroup struct {
	ID        int64
	Requester Trader
	Commodity string
	Nodes     []*RequestNode
	Capacity  float64
	CliqueIDs []int64
	Weight    float64 // set by the preconditioner
}

// BidGroup is the (trader, commodity) grouping of BidNodes.
type BidGroup struct {
	ID        int64
	Bidder    Trader
	Commodity string
	Nodes     []*BidNode
	Capacity  float64
}

// Trade is a solver-committed (Request, Bid, quantity) assignment
// awaiting execution (spec.md §4.G, §4.H).
type Trade struct {
	Request  Request
	Bid      Bid
	Quantity float64
}

// Graph is the full bipartite exchange constructed for one time step.
type Graph struct {
	RequestGroups []*RequestGroup
	BidGroups     []*BidGroup

	reqByCommod  map[string][]*RequestGroup
	bidByCommod  map[string][]*BidGroup
	reqGroupByID map[int64]*RequestGroup
	bidGroupByID map[int64]*BidGroup
	nextID       int64
}

// Parties resolves a settled Trade back to the live Traders on each side
// by looking up the RequestGroup/BidGroup the trade's Request/Bid
// belonged to when this Graph was built (spec.md §4.H needs the bidder
// and requester to invoke RemoveResource/AcceptTrades on).
func (g *Graph) Parties(t Trade) (bidder, requester Trader) {
	if rg, ok := g.reqGroupByID[t.Request.GroupID]; ok {
		requester = rg.Requester
	}
	if bg, ok := g.bidGroupByID[t.Bid.GroupID]; ok {
		bidder = bg.Bidder
	}
	return bidder, requester
}

// NewGraph constructs the exchange graph from every trader's portfolios
// for the tick, grouping by (trader, commodity) and inserting
// compatibility-gated arcs between every Request/Bid pair sharing a
// commodity (spec.md §4.F).
func NewGraph(requests []RequestPortfolio, bids []BidPortfolio) *Graph {
	g := &Graph{
		reqByCommod:  make(map[string][]*RequestGroup),
		bidByCommod:  make(map[string][]*BidGroup),
		reqGroupByID: make(map[int64]*RequestGroup),
		bidGroupByID: make(map[int64]*BidGroup),
	}

	for _, rp := range requests {
		g.nextID++
		rg := &RequestGroup{
			ID:        g.nextID,
			Requester: rp.Requester,
			Commodity: rp.Commodity,
			Capacity:  rp.Capacity,
			CliqueIDs: rp.Clique,
		}
		for i, r := range rp.Requests {
			r.GroupID = rg.ID
			rg.Nodes = append(rg.Nodes, &RequestNode{Req: r, Group: rg, order: i})
		}
		g.RequestGroups = append(g.RequestGroups, rg)
		g.reqByCommod[rp.Commodity] = append(g.reqByCommod[rp.Commodity], rg)
		g.reqGroupByID[rg.ID] = rg
	}

	for _, bp := range bids {
		g.nextID++
		bg := &BidGroup{
			ID:        g.nextID,
			Bidder:    bp.Bidder,
			Commodity: bp.Commodity,
			Capacity:  bp.Capacity,
		}
		for i, b := range bp.Bids {
			b.GroupID = bg.ID
			bg.Nodes = append(bg.Nodes, &BidNode{Bid: b, Group: bg, order: i})
		}
		g.BidGroups = append(g.BidGroups, bg)
		g.bidByCommod[bp.Commodity] = append(g.bidByCommod[bp.Commodity], bg)
		g.bidGroupByID[bg.ID] = bg
	}

	g.connectArcs()
	return g
}

func (g *Graph) connectArcs() {
	for _, rg := range g.RequestGroups {
		bgs := g.bidByCommod[rg.Commodity]
		for _, rn := range rg.Nodes {
			for _, bg := range bgs {
				for _, bn := range bg.Nodes {
					if !compatible(rn.Req.Target, bn.Bid.Offer) {
						continue
					}
					cap := min(rn.Req.Target.Quantity(), bn.Bid.Offer.Quantity())
					if cap <= 0 {
						continue
					}
					arc := &Arc{
						Req:      rn,
						Bid:      bn,
						Capacity: cap,
						Cost:     1 / (1 + rn.Req.Preference),
					}
					rn.Arcs = append(rn.Arcs, arc)
					bn.Arcs = append(bn.Arcs, arc)
				}
			}
		}
	}
}

// compatible reports whether a bidder's offer can satisfy a request's
// target: same Kind, and for Materials a composition the request will
// accept (here: any composition, since acceptance filtering beyond kind
// is a domain concern expressed via Preference/exclusivity rather than
// a hard gate — Products additionally require quality equality).
func compatible(target, offer resource.Resource) bool {
	if target == nil || offer == nil {
		return false
	}
	if target.Kind() != offer.Kind() {
		return false
	}
	if target.Kind() == resource.KindProduct {
		tp, ok1 := target.(*resource.Product)
		op, ok2 := offer.(*resource.Product)
		if ok1 && ok2 {
			return tp.Quality() == op.Quality()
		}
	}
	return true
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
