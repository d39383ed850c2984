package policy

import (
	"github.com/cyclus-sim/cyclus/internal/buffer"
	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/exchange"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Commod is a single (commodity, composition template, preference)
// triple a BuyPolicy requests against (spec.md §4.J).
type Commod struct {
	Commodity  string
	Template   resource.Resource // defines kind/composition/quality to request
	Preference float64
}

// BuyPolicy attaches to a Trader, a buffer, and one or more Commods. It
// samples an active/dormant cycle once per cycle boundary and, during
// the active portion, emits requests sized by size_dist against the
// buffer's free space (spec.md §4.J).
type BuyPolicy struct {
	buf     *buffer.ResourceBuffer
	src     *rng.Source
	commods []Commod

	activeDist  Distribution
	dormantDist Distribution
	sizeDist    Distribution

	reorderPoint  float64 // <0 means unset
	reorderQty    float64 // <0 means unset (s,S policy instead of R,Q)
	cumulativeCap float64 // <=0 means unset

	cycleActive    bool
	cycleRemaining int
	cumulative     float64
	nextReqID      int64
}

// NewBuyPolicy validates every distribution at construction (spec.md
// §4.J "fail at Init") and returns the ready policy.
func NewBuyPolicy(buf *buffer.ResourceBuffer, src *rng.Source, commods []Commod, active, dormant, size Distribution, reorderPoint, reorderQty, cumulativeCap float64) (*BuyPolicy, error) {
	for _, d := range []Distribution{active, dormant, size} {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	if len(commods) == 0 {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "buy policy requires at least one commodity")
	}
	return &BuyPolicy{
		buf: buf, src: src, commods: commods,
		activeDist: active, dormantDist: dormant, sizeDist: size,
		reorderPoint: reorderPoint, reorderQty: reorderQty, cumulativeCap: cumulativeCap,
	}, nil
}

// Tick advances the active/dormant cycle and returns this tick's
// RequestPortfolios (possibly empty, if dormant or below the reorder
// gate). maxSpace is the buffer's current free capacity.
func (p *BuyPolicy) Tick() []exchange.RequestPortfolio {
	p.advanceCycle()
	if !p.cycleActive {
		return nil
	}
	if p.reorderPoint >= 0 && p.buf.Quantity() > p.reorderPoint {
		return nil
	}
	if p.cumulativeCap > 0 && p.cumulative >= p.cumulativeCap {
		p.cycleActive = false
		return nil
	}

	maxSpace := p.buf.Capacity() - p.buf.Quantity()
	if maxSpace <= 0 {
		return nil
	}

	var qty float64
	exclusive := false
	if p.reorderQty > 0 {
		qty = p.reorderQty // (R,Q) policy: exclusive fixed-size request
		exclusive = true
	} else {
		qty = p.sizeDist.Sample(p.src) * maxSpace // (s,S) policy
	}
	if qty > maxSpace {
		qty = maxSpace
	}
	if qty <= 0 {
		return nil
	}

	var portfolios []exchange.RequestPortfolio
	for _, c := range p.commods {
		p.nextReqID++
		// Template is a prototype resource carrying the requested
		// kind/composition/quality at a large nominal quantity; cloning
		// it and extracting exactly qty produces a Target of the right
		// compatibility shape without mutating the prototype itself.
		clone := c.Template.Clone()
		drawQty := qty
		if drawQty > clone.Quantity() {
			drawQty = clone.Quantity()
		}
		target, err := clone.ExtractRes(drawQty)
		if err != nil {
			target = clone
		}
		portfolios = append(portfolios, exchange.RequestPortfolio{
			Commodity: c.Commodity,
			Requests: []exchange.Request{{
				ID:         p.nextReqID,
				Commodity:  c.Commodity,
				Target:     target,
				Exclusive:  exclusive,
				Preference: c.Preference,
			}},
		})
	}
	return portfolios
}

// Received notifies the policy of successfully delivered quantity, for
// cumulative-cap tracking.
func (p *BuyPolicy) Received(qty float64) {
	p.cumulative += qty
	if p.cumulativeCap > 0 && p.cumulative >= p.cumulativeCap {
		p.cycleActive = false
	}
}

func (p *BuyPolicy) advanceCycle() {
	if p.cycleRemaining > 0 {
		p.cycleRemaining--
		return
	}
	if p.cycleActive {
		p.cycleActive = false
		p.cycleRemaining = int(p.dormantDist.Sample(p.src))
		p.cumulative = 0
	} else {
		p.cycleActive = true
		p.cycleRemaining = int(p.activeDist.Sample(p.src))
	}
	if p.cycleRemaining > 0 {
		p.cycleRemaining--
	}
}

// SellPolicy is BuyPolicy's dual: every time step it offers up to the
// buffer's quantity of a single commodity, optionally in exclusive
// quantize-sized lots (spec.md §4.J).
type SellPolicy struct {
	buf       *buffer.ResourceBuffer
	commodity string
	quantize  float64 // <=0 means unconstrained lot size
	nextBidID int64
}

// NewSellPolicy constructs a SellPolicy offering commodity from buf.
func NewSellPolicy(buf *buffer.ResourceBuffer, commodity string, quantize float64) *SellPolicy {
	return &SellPolicy{buf: buf, commodity: commodity, quantize: quantize}
}

// Tick returns this tick's BidPortfolio for the policy's commodity,
// splitting the buffer's available quantity into quantize-sized lots if
// configured.
func (p *SellPolicy) Tick(offerTemplate func(qty float64) resource.Resource) exchange.BidPortfolio {
	total := p.buf.Quantity()
	var bids []exchange.Bid
	if total <= 0 {
		return exchange.BidPortfolio{Commodity: p.commodity}
	}

	if p.quantize > 0 {
		for remaining := total; remaining >= p.quantize; remaining -= p.quantize {
			p.nextBidID++
			bids = append(bids, exchange.Bid{ID: p.nextBidID, Commodity: p.commodity, Offer: offerTemplate(p.quantize)})
		}
	} else {
		p.nextBidID++
		bids = append(bids, exchange.Bid{ID: p.nextBidID, Commodity: p.commodity, Offer: offerTemplate(total)})
	}
	return exchange.BidPortfolio{Commodity: p.commodity, Bids: bids}
}
