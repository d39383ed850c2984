package exchange_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/resource"
)

// mockTrader is a bare Trader for graph-construction tests; its
// behavioral methods are never exercised by these tests (the graph only
// needs an Entity to tag onto each portfolio).
type mockTrader struct {
	*agent.Agent
}

func (m *mockTrader) GetRequests() []exchange.RequestPortfolio                { return nil }
func (m *mockTrader) GetBids([]exchange.RequestPortfolio) []exchange.BidPortfolio { return nil }
func (m *mockTrader) RemoveResource(exchange.Trade) (resource.Resource, error)    { return nil, nil }
func (m *mockTrader) AcceptTrades([]exchange.Match)                           {}

func newTrader(reg *agent.Registry) *mockTrader {
	core := reg.NewAgentCore(agent.KindFacility, "proto", "spec", -1)
	t := &mockTrader{Agent: core}
	reg.Register(t)
	return t
}

func newGen() *resource.IDGen { return resource.NewIDGen() }

func TestNewGraphConnectsCompatibleArcs(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	bidder := newTrader(reg)
	gen := newGen()

	target := resource.NewProduct(gen, 10, "enriched")
	offer := resource.NewProduct(gen, 6, "enriched")

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{
			Requester: requester,
			Commodity: "fuel",
			Requests:  []exchange.Request{{Commodity: "fuel", Target: target}},
		}},
		[]exchange.BidPortfolio{{
			Bidder:    bidder,
			Commodity: "fuel",
			Bids:      []exchange.Bid{{Commodity: "fuel", Offer: offer}},
		}},
	)

	require.Len(t, g.RequestGroups, 1)
	require.Len(t, g.BidGroups, 1)
	rn := g.RequestGroups[0].Nodes[0]
	require.Len(t, rn.Arcs, 1)
	require.Equal(t, 6.0, rn.Arcs[0].Capacity)
}

func TestNewGraphRejectsQualityMismatch(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	bidder := newTrader(reg)
	gen := newGen()

	target := resource.NewProduct(gen, 10, "enriched")
	offer := resource.NewProduct(gen, 6, "depleted")

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{Requester: requester, Commodity: "fuel", Requests: []exchange.Request{{Commodity: "fuel", Target: target}}}},
		[]exchange.BidPortfolio{{Bidder: bidder, Commodity: "fuel", Bids: []exchange.Bid{{Commodity: "fuel", Offer: offer}}}},
	)

	require.Empty(t, g.RequestGroups[0].Nodes[0].Arcs)
}

func TestGraphPartiesResolvesLiveTraders(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	requester := newTrader(reg)
	bidder := newTrader(reg)
	gen := newGen()

	target := resource.NewMaterial(gen, nil, 10, nil)
	offer := resource.NewMaterial(gen, nil, 10, nil)

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{{Requester: requester, Commodity: "u", Requests: []exchange.Request{{Commodity: "u", Target: target}}}},
		[]exchange.BidPortfolio{{Bidder: bidder, Commodity: "u", Bids: []exchange.Bid{{Commodity: "u", Offer: offer}}}},
	)

	trade := exchange.Trade{
		Request: g.RequestGroups[0].Nodes[0].Req,
		Bid:     g.BidGroups[0].Nodes[0].Bid,
	}
	gotBidder, gotRequester := g.Parties(trade)
	require.Same(t, bidder, gotBidder)
	require.Same(t, requester, gotRequester)
}

func TestGraphPartiesUnknownGroupReturnsNil(t *testing.T) {
	g := exchange.NewGraph(nil, nil)
	bidder, requester := g.Parties(exchange.Trade{Request: exchange.Request{GroupID: 99}, Bid: exchange.Bid{GroupID: 99}})
	require.Nil(t, bidder)
	require.Nil(t, requester)
}
