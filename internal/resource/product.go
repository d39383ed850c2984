package resource

import (
	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Product is a Resource specialization carrying only a string quality tag
// (spec.md §3 Product, §4.A Product-specific).
type Product struct {
	base
	quality string
}

// NewProduct allocates a fresh Product with a new object-id.
func NewProduct(gen *IDGen, qty float64, quality string) *Product {
	return &Product{base: newBase(gen, qty, Unpackaged.Name), quality: quality}
}

func (p *Product) Kind() Kind       { return KindProduct }
func (p *Product) Quality() string  { return p.quality }

// Clone returns an untracked copy with a fresh object-id; no Datum emitted.
func (p *Product) Clone() Resource {
	return &Product{base: newBase(p.gen, p.qty, p.pkgName), quality: p.quality}
}

// ExtractRes removes qty from self, returning a new Product of the same
// quality.
func (p *Product) ExtractRes(qty float64) (Resource, error) {
	if err := checkExtract(qty, p.qty); err != nil {
		return nil, err
	}
	drawn := clampDrawn(qty, p.qty)
	out := &Product{base: newBase(p.gen, drawn, p.pkgName), quality: p.quality}
	p.setQty(p.qty - drawn)
	p.bumpState()
	return out, nil
}

// Absorb requires quality equality; other is emptied on success.
func (p *Product) Absorb(other Resource) error {
	otherProd, ok := other.(*Product)
	if !ok {
		return cycluserr.Newf(cycluserr.KindValueError, "cannot absorb %s into Product", other.Kind())
	}
	if otherProd.quality != p.quality {
		return cycluserr.Newf(cycluserr.KindValueError, "incompatible qualities: %q vs %q", p.quality, otherProd.quality)
	}
	p.setQty(p.qty + otherProd.qty)
	p.bumpState()
	otherProd.setQty(0)
	otherProd.bumpState()
	return nil
}

// Extract removes qty from self, quality preserved.
func (p *Product) Extract(qty float64) (*Product, error) {
	r, err := p.ExtractRes(qty)
	if err != nil {
		return nil, err
	}
	return r.(*Product), nil
}

// Package subdivides self per pkg's fill strategy.
func (p *Product) Package(pkg *Package, src *rng.Source) ([]Resource, error) {
	return packageGeneric(p, pkg, src)
}

// Mixable reports whether two Products share a quality tag and can be
// absorbed into one another.
func Mixable(a, b *Product) bool { return a.quality == b.quality }
