package solver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/solver"
)

type mockTrader struct{ *agent.Agent }

func (m *mockTrader) GetRequests() []exchange.RequestPortfolio { return nil }
func (m *mockTrader) GetBids([]exchange.RequestPortfolio) []exchange.BidPortfolio {
	return nil
}
func (m *mockTrader) RemoveResource(exchange.Trade) (resource.Resource, error) { return nil, nil }
func (m *mockTrader) AcceptTrades([]exchange.Match)                            {}

func newTrader(reg *agent.Registry) *mockTrader {
	core := reg.NewAgentCore(agent.KindFacility, "proto", "spec", -1)
	t := &mockTrader{Agent: core}
	reg.Register(t)
	return t
}

func TestSolveGreedyPrefersFirstRegisteredBidOnTie(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	cheapBidder := newTrader(reg)
	expensiveBidder := newTrader(reg)
	gen := resource.NewIDGen()

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{
			Requester: requester,
			Commodity: "u",
			Requests:  []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 10, nil), Preference: 5}},
		}},
		[]exchange.BidPortfolio{
			{Bidder: cheapBidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 10, nil)}}},
			{Bidder: expensiveBidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 10, nil)}}},
		},
	)
	// arc cost is derived from the request's preference, not the bid, so
	// both arcs tie on cost; stable sort means the first-registered bid
	// group is tried first and fills the whole request.
	trades := solver.Solve(g)
	require.Len(t, trades, 1)
	require.Equal(t, 10.0, trades[0].Quantity)
	require.Equal(t, exchange.StateMatched, g.RequestGroups[0].Nodes[0].State)
}

func TestSolveSplitsAcrossMultipleBidders(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	b1 := newTrader(reg)
	b2 := newTrader(reg)
	gen := resource.NewIDGen()

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{
			Requester: requester,
			Commodity: "u",
			Requests:  []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 10, nil)}},
		}},
		[]exchange.BidPortfolio{
			{Bidder: b1, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 4, nil)}}},
			{Bidder: b2, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 6, nil)}}},
		},
	)

	trades := solver.Solve(g)
	total := 0.0
	for _, tr := range trades {
		total += tr.Quantity
	}
	require.Equal(t, 10.0, total)
}

func TestSolveExclusiveRequestSkipsPartialFill(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	bidder := newTrader(reg)
	gen := resource.NewIDGen()

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{
			Requester: requester,
			Commodity: "u",
			Requests:  []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 10, nil), Exclusive: true}},
		}},
		[]exchange.BidPortfolio{
			{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 4, nil)}}},
		},
	)

	trades := solver.Solve(g)
	require.Empty(t, trades)
	require.Equal(t, exchange.StateUnmatched, g.RequestGroups[0].Nodes[0].State)
}

func TestSolveExclusiveBidGoesWholeToOneRequesterNotSplit(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	r1 := newTrader(reg)
	r2 := newTrader(reg)
	bidder := newTrader(reg)
	gen := resource.NewIDGen()

	// Both requesters tie on preference and each wants less than the
	// full exclusive offer; without enforcement the greedy solver would
	// happily split the 10kg exclusive bid into two 6kg-capped trades.
	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{
			{Requester: r1, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 6, nil)}}},
			{Requester: r2, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 6, nil)}}},
		},
		[]exchange.BidPortfolio{
			{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 10, nil), Exclusive: true}}},
		},
	)

	trades := solver.Solve(g)
	require.Empty(t, trades, "an exclusive bid too large for any single requester must go unmatched, not split")
	require.Equal(t, exchange.StateUnmatched, g.RequestGroups[0].Nodes[0].State)
	require.Equal(t, exchange.StateUnmatched, g.RequestGroups[1].Nodes[0].State)
}

func TestSolveExclusiveBidScenarioS2PrefersHigherPreferenceRequester(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	r1 := newTrader(reg)
	r2 := newTrader(reg)
	bidder := newTrader(reg)
	gen := resource.NewIDGen()

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{
			{Requester: r1, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 50, nil), Preference: 2.0}}},
			{Requester: r2, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 50, nil), Preference: 1.0}}},
		},
		[]exchange.BidPortfolio{
			{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 50, nil), Exclusive: true}}},
		},
	)

	trades := solver.Solve(g)
	require.Len(t, trades, 1)
	require.Equal(t, 50.0, trades[0].Quantity)
	require.Equal(t, exchange.StateMatched, g.RequestGroups[0].Nodes[0].State, "higher-preference requester fills the whole exclusive bid")
	require.Equal(t, exchange.StateUnmatched, g.RequestGroups[1].Nodes[0].State)
}

func TestSolveCliqueRollsBackWhenAnyMemberUnfillable(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	r1 := newTrader(reg)
	r2 := newTrader(reg)
	bidder := newTrader(reg)
	gen := resource.NewIDGen()

	requests := []exchange.RequestPortfolio{
		{Requester: r1, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 10, nil)}}},
		{Requester: r2, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 10, nil)}}},
	}
	bids := []exchange.BidPortfolio{
		// only enough supply to fill one of the two clique members fully.
		{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 10, nil)}}},
	}
	g := exchange.NewGraph(requests, bids)
	// wire the mutual-request clique after construction, once group ids
	// are known.
	g.RequestGroups[0].CliqueIDs = []int64{g.RequestGroups[1].ID}

	trades := solver.Solve(g)
	require.Empty(t, trades, "clique must roll back entirely when one member cannot be fully filled")
}

func TestSolveCliqueCommitsAtomicallyWhenFullyFillable(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	r1 := newTrader(reg)
	r2 := newTrader(reg)
	bidder := newTrader(reg)
	gen := resource.NewIDGen()

	requests := []exchange.RequestPortfolio{
		{Requester: r1, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 5, nil)}}},
		{Requester: r2, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: resource.NewMaterial(gen, nil, 5, nil)}}},
	}
	bids := []exchange.BidPortfolio{
		{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: resource.NewMaterial(gen, nil, 10, nil)}}},
	}
	g := exchange.NewGraph(requests, bids)
	g.RequestGroups[0].CliqueIDs = []int64{g.RequestGroups[1].ID}

	trades := solver.Solve(g)
	total := 0.0
	for _, tr := range trades {
		total += tr.Quantity
	}
	require.Equal(t, 10.0, total)
}
