package supplydemand

import "sort"

// BuildOrder is one line of a build decision: build count units of
// producer's prototype via builder (spec.md §4.I).
type BuildOrder struct {
	Count     int
	Producer  CommodityProducer
	Builder   CommodityProducer // the agent responsible for constructing it; here the producer itself
}

// BuildingManager formulates and solves the integer program
//
//	minimize   Σ nᵢ·costᵢ
//	subject to Σ nᵢ·capᵢ ≥ unmet_demand,  nᵢ ∈ ℕ
//
// over every producer of a commodity across every registered manager
// (spec.md §4.I). No off-the-shelf ILP package in the example corpus
// covers this shape (gonum ships only continuous/LP solvers), so the
// branch-and-bound driver below is hand-rolled per spec.md's explicit
// call for "a branch-and-bound driver".
type BuildingManager struct {
	sdm *Manager
}

// NewBuildingManager wires a BuildingManager to its SupplyDemandManager.
func NewBuildingManager(sdm *Manager) *BuildingManager {
	return &BuildingManager{sdm: sdm}
}

type producerSpec struct {
	p    CommodityProducer
	cap  float64
	cost float64
}

// MakeBuildDecision solves the covering integer program for commodity
// given unmetDemand, returning BuildOrders. Returns nil when
// unmetDemand <= 0 (spec.md §4.I), and also when no registered producer
// has positive capacity for commodity.
func (bm *BuildingManager) MakeBuildDecision(commodity string, unmetDemand float64) []BuildOrder {
	if unmetDemand <= 0 {
		return nil
	}

	producers := bm.sdm.allProducers(commodity)
	specs := make([]producerSpec, 0, len(producers))
	for _, p := range producers {
		cap := p.ProductionCapacity(commodity)
		if cap <= 0 {
			continue
		}
		specs = append(specs, producerSpec{p: p, cap: cap, cost: p.ProductionCost(commodity)})
	}
	if len(specs) == 0 {
		return nil
	}

	// Cheapest-capacity-ratio first is both the branching order and the
	// bound: sorting ascending by cost-per-unit-capacity lets the
	// feasibility bound at each node be computed with a single greedy
	// fractional fill, which is the LP relaxation of this single-row
	// covering program.
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].cost/specs[i].cap < specs[j].cost/specs[j].cap
	})

	counts := make([]int, len(specs))
	best := &bbSolution{cost: posInf}
	solveBB(specs, 0, unmetDemand, 0, counts, best)

	if best.cost == posInf {
		return nil
	}
	var orders []BuildOrder
	for i, n := range best.counts {
		if n > 0 {
			orders = append(orders, BuildOrder{Count: n, Producer: specs[i].p, Builder: specs[i].p})
		}
	}
	return orders
}

type bbSolution struct {
	cost   float64
	counts []int
}

const posInf = float64(1 << 62)

// solveBB explores, for each producer in order, every unit count from 0
// up to the minimum needed to cover the remaining demand alone, pruning
// any partial assignment whose cost already exceeds the incumbent and
// any branch whose remaining producers' combined capacity cannot reach
// the remaining demand.
func solveBB(specs []producerSpec, idx int, remaining float64, costSoFar float64, counts []int, best *bbSolution) {
	if remaining <= 1e-9 {
		if costSoFar < best.cost {
			best.cost = costSoFar
			best.counts = append([]int(nil), counts...)
		}
		return
	}
	if idx >= len(specs) {
		return // infeasible along this branch: ran out of producers
	}
	if costSoFar >= best.cost {
		return // bound: cannot possibly beat the incumbent
	}

	remainingCapacity := 0.0
	for i := idx; i < len(specs); i++ {
		remainingCapacity += specs[i].cap * float64(maxUsefulUnits(specs[i].cap, remaining))
	}
	if remainingCapacity < remaining-1e-9 {
		return // bound: even maxing out every remaining producer can't cover demand
	}

	s := specs[idx]
	maxUnits := maxUsefulUnits(s.cap, remaining)
	for n := maxUnits; n >= 0; n-- {
		counts[idx] = n
		solveBB(specs, idx+1, remaining-float64(n)*s.cap, costSoFar+float64(n)*s.cost, counts, best)
	}
	counts[idx] = 0
}

// maxUsefulUnits caps how many units of a producer are ever worth
// branching on: just enough to singlehandedly cover the remaining demand
// (an extra unit is never optimal once demand is covered, so
// ceil(remaining/cap) is the true ceiling).
func maxUsefulUnits(cap, remaining float64) int {
	if cap <= 0 {
		return 0
	}
	n := int(remaining / cap)
	if float64(n)*cap < remaining-1e-9 {
		n++
	}
	if n < 0 {
		n = 0
	}
	return n
}
