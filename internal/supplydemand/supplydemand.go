// Package supplydemand tracks commodity production capacity against
// demand curves and formulates build orders to close any gap (spec.md
// §4.I Supply/demand + builder).
package supplydemand

import (
	"math"
	"sort"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/recorder"
	"github.com/cyclus-sim/cyclus/internal/timeseries"
)

// aggregateSeriesAgentID is the sentinel AgentId stamped on Supply/Demand/
// UnmetDemand series Datums, which describe a whole commodity market
// rather than any single agent.
const aggregateSeriesAgentID = -1

// CommodityProducer tags an agent as able to produce a named commodity.
// Defined here (not in package agent) so agent need not depend on this
// package, mirroring exchange.Trader's placement.
type CommodityProducer interface {
	agent.Entity
	ProductionCapacity(commodity string) float64
	ProductionCost(commodity string) float64
}

// CommodityProducerManager owns a set of producers and aggregates their
// capacity per commodity.
type CommodityProducerManager struct {
	producers []CommodityProducer
}

// NewCommodityProducerManager constructs an empty manager.
func NewCommodityProducerManager() *CommodityProducerManager {
	return &CommodityProducerManager{}
}

// Register adds a producer to the manager.
func (m *CommodityProducerManager) Register(p CommodityProducer) {
	m.producers = append(m.producers, p)
}

// Unregister removes a producer by agent id.
func (m *CommodityProducerManager) Unregister(id agent.AgentID) {
	out := m.producers[:0]
	for _, p := range m.producers {
		if p.Core().ID() != id {
			out = append(out, p)
		}
	}
	m.producers = out
}

// TotalProductionCapacity sums productionCapacity(commodity) across every
// registered producer (spec.md §4.I "CommodityProducerManager ... aggregates
// capacity per commodity").
func (m *CommodityProducerManager) TotalProductionCapacity(commodity string) float64 {
	total := 0.0
	for _, p := range m.producers {
		total += p.ProductionCapacity(commodity)
	}
	return total
}

// Producers returns every registered producer of commodity, in
// registration order.
func (m *CommodityProducerManager) Producers(commodity string) []CommodityProducer {
	var out []CommodityProducer
	for _, p := range m.producers {
		if p.ProductionCapacity(commodity) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// DemandFunc evaluates a commodity's demand curve at time t (spec.md
// §4.I: Linear, Exponential, Piecewise).
type DemandFunc func(t float64) float64

// Linear returns f(x) = m·x + b.
func Linear(m, b float64) DemandFunc {
	return func(x float64) float64 { return m*x + b }
}

// Exponential returns f(x) = a·exp(b·x) + c.
func Exponential(a, b, c float64) DemandFunc {
	return func(x float64) float64 { return a*math.Exp(b*x) + c }
}

// PiecewiseInterval is one ordered, non-overlapping segment of a
// Piecewise demand curve.
type PiecewiseInterval struct {
	Start, End float64 // [Start, End); End == +Inf for the final interval
	Fn         DemandFunc
}

// Piecewise evaluates the first interval containing x; intervals must be
// supplied in ascending, non-overlapping order. If enforceContinuity is
// set, Piecewise panics at construction if adjacent interval boundaries
// disagree by more than 1e-9 — a configuration error the loader (out of
// scope) is expected to have already validated in production use; this
// check re-derives it from the interval functions at construction.
func Piecewise(intervals []PiecewiseInterval, enforceContinuity bool) DemandFunc {
	sorted := append([]PiecewiseInterval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	if enforceContinuity {
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if math.Abs(prev.Fn(prev.End)-cur.Fn(cur.Start)) > 1e-9 {
				panic("supplydemand: piecewise demand curve is discontinuous at a configured boundary")
			}
		}
	}
	return func(x float64) float64 {
		for _, iv := range sorted {
			if x >= iv.Start && (x < iv.End || math.IsInf(iv.End, 1)) {
				return iv.Fn(x)
			}
		}
		if len(sorted) > 0 {
			return sorted[len(sorted)-1].Fn(x)
		}
		return 0
	}
}

// Manager maps commodity -> (demand curve, set of CommodityProducerManagers)
// and is the core bookkeeping spec.md §4.I calls SupplyDemandManager.
type Manager struct {
	demand   map[string]DemandFunc
	managers map[string][]*CommodityProducerManager
}

// NewManager constructs an empty SupplyDemandManager.
func NewManager() *Manager {
	return &Manager{demand: make(map[string]DemandFunc), managers: make(map[string][]*CommodityProducerManager)}
}

// RegisterDemand sets commodity's demand curve.
func (sdm *Manager) RegisterDemand(commodity string, f DemandFunc) {
	sdm.demand[commodity] = f
}

// RegisterManager associates a CommodityProducerManager with commodity.
func (sdm *Manager) RegisterManager(commodity string, m *CommodityProducerManager) {
	sdm.managers[commodity] = append(sdm.managers[commodity], m)
}

// Supply(c) = Σ manager.TotalProductionCapacity(c) over every manager
// registered for commodity c.
func (sdm *Manager) Supply(commodity string) float64 {
	total := 0.0
	for _, m := range sdm.managers[commodity] {
		total += m.TotalProductionCapacity(commodity)
	}
	return total
}

// Demand(c, t) = f(t), the registered demand curve evaluated at t. Zero
// if no curve is registered for c.
func (sdm *Manager) Demand(commodity string, t float64) float64 {
	f, ok := sdm.demand[commodity]
	if !ok {
		return 0
	}
	return f(t)
}

// UnmetDemand is Demand - Supply, floored at zero.
func (sdm *Manager) UnmetDemand(commodity string, t float64) float64 {
	u := sdm.Demand(commodity, t) - sdm.Supply(commodity)
	if u < 0 {
		return 0
	}
	return u
}

// RecordSupplyDemand records the tick's Supply, Demand and UnmetDemand for
// commodity as three named time series, ported from the upstream's
// RecordTimeSeries toolkit usage — SupplyDemandManager has no Datum output
// of its own in spec.md, so this gives the same bookkeeping the
// per-tick observability the upstream's time-series toolkit provides.
func (sdm *Manager) RecordSupplyDemand(ts *timeseries.Registry, rec *recorder.Recorder, commodity string, t int) error {
	supply := sdm.Supply(commodity)
	demand := sdm.Demand(commodity, float64(t))
	unmet := sdm.UnmetDemand(commodity, float64(t))

	if err := timeseries.Record(ts, rec, "Supply"+commodity, aggregateSeriesAgentID, t, supply); err != nil {
		return err
	}
	if err := timeseries.Record(ts, rec, "Demand"+commodity, aggregateSeriesAgentID, t, demand); err != nil {
		return err
	}
	return timeseries.Record(ts, rec, "UnmetDemand"+commodity, aggregateSeriesAgentID, t, unmet)
}

func (sdm *Manager) allProducers(commodity string) []CommodityProducer {
	var out []CommodityProducer
	for _, m := range sdm.managers[commodity] {
		out = append(out, m.Producers(commodity)...)
	}
	return out
}
