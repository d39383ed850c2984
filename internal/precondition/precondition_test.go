package precondition_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/precondition"
	"github.com/cyclus-sim/cyclus/internal/resource"
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

func TestOrderSortsGroupsByDescendingWeight(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	gen := resource.NewIDGen()
	lowTrader := newTrader(reg)
	highTrader := newTrader(reg)

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{
			{Requester: lowTrader, Commodity: "low", Requests: []exchange.Request{{Commodity: "low", Target: resource.NewMaterial(gen, nil, 1, nil)}}},
			{Requester: highTrader, Commodity: "high", Requests: []exchange.Request{{Commodity: "high", Target: resource.NewMaterial(gen, nil, 1, nil)}}},
		},
		nil,
	)

	weights := map[string]float64{"low": 1, "high": 10}
	precondition.Order(g, precondition.CommodWeight(func(c string) float64 { return weights[c] }), true)

	require.Equal(t, "high", g.RequestGroups[0].Commodity)
	require.Equal(t, "low", g.RequestGroups[1].Commodity)
}

func TestOrderAscendingReversesSort(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	gen := resource.NewIDGen()
	lowTrader := newTrader(reg)
	highTrader := newTrader(reg)

	g := exchange.NewGraph(
		[]exchange.RequestPortfolio{
			{Requester: lowTrader, Commodity: "low", Requests: []exchange.Request{{Commodity: "low", Target: resource.NewMaterial(gen, nil, 1, nil)}}},
			{Requester: highTrader, Commodity: "high", Requests: []exchange.Request{{Commodity: "high", Target: resource.NewMaterial(gen, nil, 1, nil)}}},
		},
		nil,
	)

	weights := map[string]float64{"low": 1, "high": 10}
	precondition.Order(g, precondition.CommodWeight(func(c string) float64 { return weights[c] }), false)

	require.Equal(t, "low", g.RequestGroups[0].Commodity)
	require.Equal(t, "high", g.RequestGroups[1].Commodity)
}

func TestReverseWeightsTransformsExtremes(t *testing.T) {
	in := map[string]float64{"a": 1, "b": 5, "c": 10}
	out := precondition.ReverseWeights(in)
	// max+min-w: 10+1-1=10, 10+1-5=6, 10+1-10=1
	require.Equal(t, 10.0, out["a"])
	require.Equal(t, 6.0, out["b"])
	require.Equal(t, 1.0, out["c"])
}

func TestReverseWeightsEmptyIsNoop(t *testing.T) {
	require.Empty(t, precondition.ReverseWeights(nil))
}
