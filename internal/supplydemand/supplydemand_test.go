package supplydemand_test

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/recorder"
	"github.com/cyclus-sim/cyclus/internal/supplydemand"
	"github.com/cyclus-sim/cyclus/internal/timeseries"
)

type fakeProducer struct {
	*agent.Agent
	cap  float64
	cost float64
}

func (f *fakeProducer) ProductionCapacity(string) float64 { return f.cap }
func (f *fakeProducer) ProductionCost(string) float64      { return f.cost }

func newProducer(reg *agent.Registry, cap, cost float64) *fakeProducer {
	core := reg.NewAgentCore(agent.KindFacility, "proto", "spec", -1)
	p := &fakeProducer{Agent: core, cap: cap, cost: cost}
	reg.Register(p)
	return p
}

func TestCommodityProducerManagerAggregatesCapacity(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	m := supplydemand.NewCommodityProducerManager()
	m.Register(newProducer(reg, 3, 1))
	m.Register(newProducer(reg, 4, 1))

	require.Equal(t, 7.0, m.TotalProductionCapacity("u"))
}

func TestCommodityProducerManagerUnregister(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	m := supplydemand.NewCommodityProducerManager()
	p1 := newProducer(reg, 3, 1)
	m.Register(p1)
	m.Register(newProducer(reg, 4, 1))

	m.Unregister(p1.ID())
	require.Equal(t, 4.0, m.TotalProductionCapacity("u"))
}

func TestLinearDemandFunc(t *testing.T) {
	f := supplydemand.Linear(2, 5)
	require.Equal(t, 9.0, f(2))
}

func TestExponentialDemandFunc(t *testing.T) {
	f := supplydemand.Exponential(1, 0, 0)
	require.Equal(t, 1.0, f(100))
}

func TestPiecewiseSelectsMatchingInterval(t *testing.T) {
	f := supplydemand.Piecewise([]supplydemand.PiecewiseInterval{
		{Start: 0, End: 10, Fn: supplydemand.Linear(1, 0)},
		{Start: 10, End: math.Inf(1), Fn: supplydemand.Linear(0, 100)},
	}, false)
	require.Equal(t, 5.0, f(5))
	require.Equal(t, 100.0, f(50))
}

func TestPiecewiseEnforceContinuityPanicsOnDiscontinuity(t *testing.T) {
	require.Panics(t, func() {
		supplydemand.Piecewise([]supplydemand.PiecewiseInterval{
			{Start: 0, End: 10, Fn: supplydemand.Linear(1, 0)},
			{Start: 10, End: math.Inf(1), Fn: supplydemand.Linear(0, 999)},
		}, true)
	})
}

func TestManagerUnmetDemandFlooredAtZero(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	sdm := supplydemand.NewManager()
	sdm.RegisterDemand("u", supplydemand.Linear(0, 10))
	cpm := supplydemand.NewCommodityProducerManager()
	cpm.Register(newProducer(reg, 20, 1))
	sdm.RegisterManager("u", cpm)

	require.Equal(t, 0.0, sdm.UnmetDemand("u", 0))
}

func TestManagerUnmetDemandPositiveWhenSupplyShort(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	sdm := supplydemand.NewManager()
	sdm.RegisterDemand("u", supplydemand.Linear(0, 10))
	cpm := supplydemand.NewCommodityProducerManager()
	cpm.Register(newProducer(reg, 4, 1))
	sdm.RegisterManager("u", cpm)

	require.Equal(t, 6.0, sdm.UnmetDemand("u", 0))
}

func TestRecordSupplyDemandEmitsThreeNamedSeries(t *testing.T) {
	reg := agent.NewRegistry(func() int { return 0 })
	sdm := supplydemand.NewManager()
	sdm.RegisterDemand("u", supplydemand.Linear(0, 10))
	cpm := supplydemand.NewCommodityProducerManager()
	cpm.Register(newProducer(reg, 4, 1))
	sdm.RegisterManager("u", cpm)

	rec := recorder.New(uuid.New(), 10000, zerolog.Nop())
	mem := recorder.NewMemoryBackend("mem")
	rec.AddBackend(mem)
	ts := timeseries.NewRegistry()

	require.NoError(t, sdm.RecordSupplyDemand(ts, rec, "u", 0))
	rec.Flush()

	require.Len(t, mem.ByTitle("TimeSeriesSupplyu"), 1)
	require.Len(t, mem.ByTitle("TimeSeriesDemandu"), 1)
	require.Len(t, mem.ByTitle("TimeSeriesUnmetDemandu"), 1)
}
