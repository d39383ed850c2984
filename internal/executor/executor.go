// Package executor applies solver-committed trades (spec.md §4.H Trade
// executor): it draws the traded resource from the bidder, delivers it
// to the requester, and records the outcome — success or failure — to
// the recorder.
package executor

import (
	"github.com/rs/zerolog"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/recorder"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Executor owns the recorder handle trades are logged through and the
// context-scoped RNG source used to mint deterministic TransactionIds.
type Executor struct {
	rec *recorder.Recorder
	rng *rng.Source
	log zerolog.Logger
}

// New constructs an Executor. src must be the Context's single RNG
// source, never a freshly-seeded one, so TransactionId draws stay in
// the deterministic sequence every other draw in the run consumes from.
func New(rec *recorder.Recorder, src *rng.Source, log zerolog.Logger) *Executor {
	return &Executor{rec: rec, rng: src, log: log.With().Str("component", "executor").Logger()}
}

// TradeParties resolves the bidder and requester Traders for a Trade;
// the time driver supplies this via closures over the live ExchangeGraph
// groups, since Trade itself only carries the Request/Bid value types.
type TradeParties func(t exchange.Trade) (bidder, requester exchange.Trader)

// Execute applies every trade in order, resolving each trade's live
// bidder/requester via parties. On a removeResource failure the trade is
// skipped, both sides' pre-trade state is implicitly preserved (the
// executor never mutated them), and a FailedTrade Datum is recorded; the
// solver is not re-run in the same time step (spec.md §4.H step 4).
// Deliveries are batched per requester so AcceptTrades is called exactly
// once per requester per tick.
func (e *Executor) Execute(trades []exchange.Trade, time int, parties TradeParties) {
	acceptedByRequester := make(map[int64][]exchange.Match)
	requesterOf := make(map[int64]exchange.Trader)

	for _, t := range trades {
		bidder, requester := parties(t)
		if bidder == nil || requester == nil {
			e.log.Warn().Msg("trade references an unresolved trader; skipping")
			e.recordFailed(t, time, "unresolved trader")
			continue
		}

		res, err := bidder.RemoveResource(t)
		if err != nil {
			core := bidder.Core()
			err = cycluserr.WithAgent(err, core.Prototype(), core.SpecString(), int64(core.ID()), time)
			e.log.Warn().Err(err).Str("commodity", t.Request.Commodity).Msg("removeResource failed; dropping trade")
			e.recordFailed(t, time, err.Error())
			continue
		}

		rid := requester.Core().ID()
		requesterOf[int64(rid)] = requester
		acceptedByRequester[int64(rid)] = append(acceptedByRequester[int64(rid)], exchange.Match{Trade: t, Resource: res})

		e.recordTransaction(t, res, time, bidder, requester)
	}

	for rid, matches := range acceptedByRequester {
		requesterOf[rid].AcceptTrades(matches)
	}
}

func (e *Executor) recordTransaction(t exchange.Trade, res interface{ ObjectID() int64 }, time int, bidder, requester exchange.Trader) {
	if e.rec == nil {
		return
	}
	err := e.rec.NewDatum("Transactions").
		AddVal("TransactionId", e.rng.UUID()).
		AddVal("SenderId", int64(bidder.Core().ID())).
		AddVal("ReceiverId", int64(requester.Core().ID())).
		AddVal("Commodity", t.Request.Commodity).
		AddVal("Price", t.Request.Preference).
		AddVal("ResourceId", res.ObjectID()).
		AddVal("Quantity", t.Quantity).
		AddVal("Time", int64(time)).
		Record()
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to record Transactions datum")
	}
}

func (e *Executor) recordFailed(t exchange.Trade, time int, reason string) {
	if e.rec == nil {
		return
	}
	err := e.rec.NewDatum("FailedTrade").
		AddVal("Commodity", t.Request.Commodity).
		AddVal("Quantity", t.Quantity).
		AddVal("Reason", reason).
		AddVal("Time", int64(time)).
		Record()
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to record FailedTrade datum")
	}
}
