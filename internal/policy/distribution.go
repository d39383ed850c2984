// Package policy implements turn-key Trader behaviors — BuyPolicy and
// SellPolicy — driving a buffer.ResourceBuffer under configurable
// active/dormant cycling and size distributions (spec.md §4.J).
package policy

import (
	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Distribution samples a single float value, routed through the
// context-scoped rng.Source so draws stay deterministic per seed
// (spec.md §5 Determinism).
type Distribution interface {
	Sample(src *rng.Source) float64
	// Validate fails fast at Init on an invalid parameter combination
	// (spec.md §4.J: "fail at Init").
	Validate() error
}

// Fixed always returns Value.
type Fixed struct{ Value float64 }

func (f Fixed) Sample(src *rng.Source) float64 { return src.Fixed(f.Value) }
func (f Fixed) Validate() error                { return nil }

// Uniform samples Uniform[Min,Max].
type Uniform struct{ Min, Max float64 }

func (u Uniform) Sample(src *rng.Source) float64 { return src.Uniform(u.Min, u.Max) }
func (u Uniform) Validate() error {
	if u.Min > u.Max {
		return cycluserr.Newf(cycluserr.KindValueError, "uniform distribution: min %v > max %v", u.Min, u.Max)
	}
	return nil
}

// Normal samples Normal(Mu,Sigma) truncated to [Min,Max].
type Normal struct{ Mu, Sigma, Min, Max float64 }

func (n Normal) Sample(src *rng.Source) float64 { return src.Normal(n.Mu, n.Sigma, n.Min, n.Max) }
func (n Normal) Validate() error {
	if n.Min > n.Max {
		return cycluserr.Newf(cycluserr.KindValueError, "normal distribution: min %v > max %v", n.Min, n.Max)
	}
	if n.Sigma < 0 {
		return cycluserr.Newf(cycluserr.KindValueError, "normal distribution: sigma %v is negative", n.Sigma)
	}
	return nil
}

// Binomial is the "Binomial-with-end-probability" cycle-length
// distribution (spec.md §4.J): a one-success negative-binomial draw,
// modeled here as the number of Bernoulli(P) trials until the first
// success, capped at N.
type Binomial struct {
	N int
	P float64
}

func (b Binomial) Sample(src *rng.Source) float64 {
	for i := 1; i < b.N; i++ {
		if src.BernoulliBool(b.P) {
			return float64(i)
		}
	}
	return float64(b.N)
}

func (b Binomial) Validate() error {
	if b.P < 0 || b.P > 1 {
		return cycluserr.Newf(cycluserr.KindValueError, "binomial distribution: probability %v not in [0,1]", b.P)
	}
	if b.N <= 0 {
		return cycluserr.Newf(cycluserr.KindValueError, "binomial distribution: N %d must be positive", b.N)
	}
	return nil
}

// FixedWithDisruption picks between a nominal and a disrupted cycle
// length via a per-cycle Bernoulli draw (spec.md §4.J).
type FixedWithDisruption struct {
	Nominal        float64
	Disrupted      float64
	DisruptionProb float64
}

func (f FixedWithDisruption) Sample(src *rng.Source) float64 {
	if src.BernoulliBool(f.DisruptionProb) {
		return f.Disrupted
	}
	return f.Nominal
}

func (f FixedWithDisruption) Validate() error {
	if f.DisruptionProb < 0 || f.DisruptionProb > 1 {
		return cycluserr.Newf(cycluserr.KindValueError, "fixed-with-disruption: probability %v not in [0,1]", f.DisruptionProb)
	}
	return nil
}
