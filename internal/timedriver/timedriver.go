// Package timedriver orchestrates the per-time-step phase sequence
// (spec.md §4.K): EnterPending -> Tick -> BuildExchange -> Solve ->
// Execute -> Tock -> Decom -> Flush? -> t+1.
package timedriver

import (
	"fmt"

	"github.com/cyclus-sim/cyclus/internal/agent"
	cyclusctx "github.com/cyclus-sim/cyclus/internal/context"
	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/executor"
	"github.com/cyclus-sim/cyclus/internal/precondition"
	"github.com/cyclus-sim/cyclus/internal/solver"
)

// pendingEntry is an agent queued for entry into the tree at or before
// ScheduledTime (spec.md §4.K step 1).
type pendingEntry struct {
	child         agent.Entity
	parent        agent.Entity
	scheduledTime int
}

// Driver runs the simulation one time step at a time, owning the
// Context and orchestrating every phase of spec.md §4.K's sequence. It
// holds no domain knowledge of its own: traders, producers and
// commodity weights are supplied by the caller (the composition root)
// at construction.
type Driver struct {
	ctx *cyclusctx.Context

	pending []pendingEntry
	traders []exchange.Trader

	commodWeight CommodWeightFunc
	descOrder    bool
	exec         *executor.Executor
}

// CommodWeightFunc supplies the preconditioner's per-commodity weight
// term (spec.md §4.G).
type CommodWeightFunc func(commodity string) float64

// Options configures a Driver at construction.
type Options struct {
	CommodWeight    CommodWeightFunc // nil means every commodity weighs 1
	DescendingOrder bool             // preconditioner sort direction
}

// New constructs a Driver bound to ctx.
func New(ctx *cyclusctx.Context, opts Options) *Driver {
	return &Driver{
		ctx:          ctx,
		commodWeight: opts.CommodWeight,
		descOrder:    opts.DescendingOrder,
		exec:         executor.New(ctx.Recorder, ctx.RNG, ctx.Log),
	}
}

// Context returns the driver's bound Context.
func (d *Driver) Context() *cyclusctx.Context { return d.ctx }

// ScheduleEntry queues child to be built under parent once the clock
// reaches scheduledTime or later (spec.md §4.K step 1).
func (d *Driver) ScheduleEntry(child, parent agent.Entity, scheduledTime int) {
	d.pending = append(d.pending, pendingEntry{child: child, parent: parent, scheduledTime: scheduledTime})
}

// RegisterTrader adds a Trader the exchange will solicit requests/bids
// from every tick, and registers it as a TimeListener if it implements
// that interface too (agents commonly implement both).
func (d *Driver) RegisterTrader(t exchange.Trader) {
	d.traders = append(d.traders, t)
	if tl, ok := t.(cyclusctx.TimeListener); ok {
		d.ctx.RegisterTimeListener(tl)
	}
}

// UnregisterTrader removes a trader by agent id, used when its agent is
// decommissioned.
func (d *Driver) UnregisterTrader(id agent.AgentID) {
	out := d.traders[:0]
	for _, t := range d.traders {
		if t.Core().ID() != id {
			out = append(out, t)
		}
	}
	d.traders = out
}

// Step runs exactly one time step of spec.md §4.K's sequence and
// advances the clock for the next call.
func (d *Driver) Step() {
	d.enterPending()

	for _, tl := range d.ctx.TimeListeners() {
		d.safeTick(tl)
	}

	requests, bids := d.collectPortfolios()
	graph := exchange.NewGraph(requests, bids)
	precondition.Order(graph, precondition.CommodWeight(d.commodWeight), d.descOrder)
	trades := solver.Solve(graph)
	d.exec.Execute(trades, d.ctx.Clock.Now(), graph.Parties)

	for _, tl := range d.ctx.TimeListeners() {
		d.safeTock(tl)
	}

	d.processDecom()

	// No unconditional flush here: Recorder.record() already flushes the
	// instant the batch reaches dumpCount (spec.md §4.C ring-buffer
	// behavior). Run's Close() flushes whatever partial batch remains
	// after the final step (spec.md §4.K step 7).
	d.ctx.Clock.Advance()
}

// Run steps the driver exactly steps times, then closes the recorder
// (spec.md §4.K "At the final time step the driver calls Close() on the
// recorder").
func (d *Driver) Run(steps int) error {
	for i := 0; i < steps; i++ {
		d.Step()
	}
	return d.ctx.Recorder.Close()
}

// enterPending promotes every agent whose scheduled entry time has
// arrived, calling Registry.Build (which itself invokes EnterNotify).
func (d *Driver) enterPending() {
	now := d.ctx.Clock.Now()
	var remaining []pendingEntry
	for _, pe := range d.pending {
		if pe.scheduledTime > now {
			remaining = append(remaining, pe)
			continue
		}
		if err := d.ctx.Agents.Build(pe.child, pe.parent); err != nil {
			d.ctx.Log.Error().Err(err).Msg("scheduled agent entry failed")
			continue
		}
		if err := pe.child.Core().RecordTags(d.ctx.Recorder); err != nil {
			d.ctx.Log.Error().Err(err).Msg("failed to record agent metadata tags")
		}
	}
	d.pending = remaining
}

// collectPortfolios asks every registered Trader for its requests and
// bids this tick (spec.md §4.K step 3). Traders offering bids are asked
// once, after every requester's requests are known, so SellPolicy-style
// traders can see the tick's rfqs if they choose to.
func (d *Driver) collectPortfolios() ([]exchange.RequestPortfolio, []exchange.BidPortfolio) {
	var requests []exchange.RequestPortfolio
	for _, t := range d.traders {
		rps := d.safeGetRequests(t)
		for i := range rps {
			rps[i].Requester = t
		}
		requests = append(requests, rps...)
	}
	var bids []exchange.BidPortfolio
	for _, t := range d.traders {
		bps := d.safeGetBids(t, requests)
		for i := range bps {
			bps[i].Bidder = t
		}
		bids = append(bids, bps...)
	}
	return requests, bids
}

// recoverAgentPanic turns a recovered panic value from an agent callback
// into a cycluserr.AgentContext-wrapped error and logs it, so a single
// buggy agent cannot abort the whole run (mirrors recorder.go: "Backend
// errors are caught and logged; they never abort recording").
func (d *Driver) recoverAgentPanic(core *agent.Agent, callback string, r any) {
	err := cycluserr.WithAgent(fmt.Errorf("%s panicked: %v", callback, r), core.Prototype(), core.SpecString(), int64(core.ID()), d.ctx.Clock.Now())
	d.ctx.Log.Error().Err(err).Msg("agent callback failed")
}

// safeTick calls tl.Tick(), recovering and logging any panic under the
// agent's identity rather than letting it crash the run.
func (d *Driver) safeTick(tl cyclusctx.TimeListener) {
	defer func() {
		if r := recover(); r != nil {
			d.recoverAgentPanic(tl.Core(), "Tick", r)
		}
	}()
	tl.Tick()
}

// safeTock calls tl.Tock(), recovering and logging any panic under the
// agent's identity rather than letting it crash the run.
func (d *Driver) safeTock(tl cyclusctx.TimeListener) {
	defer func() {
		if r := recover(); r != nil {
			d.recoverAgentPanic(tl.Core(), "Tock", r)
		}
	}()
	tl.Tock()
}

// safeGetRequests calls t.GetRequests(), recovering and logging any panic
// under the agent's identity; a panicking trader simply contributes no
// requests this tick.
func (d *Driver) safeGetRequests(t exchange.Trader) (rps []exchange.RequestPortfolio) {
	defer func() {
		if r := recover(); r != nil {
			d.recoverAgentPanic(t.Core(), "GetRequests", r)
			rps = nil
		}
	}()
	return t.GetRequests()
}

// safeGetBids calls t.GetBids(requests), recovering and logging any panic
// under the agent's identity; a panicking trader simply contributes no
// bids this tick.
func (d *Driver) safeGetBids(t exchange.Trader, requests []exchange.RequestPortfolio) (bps []exchange.BidPortfolio) {
	defer func() {
		if r := recover(); r != nil {
			d.recoverAgentPanic(t.Core(), "GetBids", r)
			bps = nil
		}
	}()
	return t.GetBids(requests)
}

// processDecom drains the Context's scheduled-decommission queue and
// decommissions each entry; cascading removals enqueued during this pass
// (a parent's decommission scheduling a child) are processed in the same
// pass, since DrainSchedDecom is called again until empty (spec.md §4.K
// step 6: "removals may cascade").
func (d *Driver) processDecom() {
	for {
		batch := d.ctx.DrainSchedDecom()
		if len(batch) == 0 {
			return
		}
		for _, id := range batch {
			ent, ok := d.ctx.Agents.Lookup(id)
			if !ok {
				continue
			}
			if err := d.ctx.Agents.Decommission(ent); err != nil {
				d.ctx.Log.Error().Err(err).Msg("scheduled decommission failed")
				continue
			}
			d.ctx.UnregisterTimeListener(id)
			d.UnregisterTrader(id)
		}
	}
}
