// Package resource implements the Resource abstraction (spec.md §3, §4.A):
// identity, conservation, split/merge and packaging for materials and bulk
// products.
package resource

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Epsilon is ε_rsrc, the relative tolerance used for all quantity
// comparisons (spec.md §3 Resource invariants).
const Epsilon = 1e-6

// maxPackageQuantity bounds a single package draw; spec.md: "A draw >
// max integer-representable quantity fails."
const maxPackageQuantity = float64(1 << 53)

// Kind distinguishes the two Resource specializations.
type Kind int

const (
	KindMaterial Kind = iota
	KindProduct
)

func (k Kind) String() string {
	if k == KindMaterial {
		return "Material"
	}
	return "Product"
}

// IDGen is the sole allocator of object-ids and state-ids. It is owned by
// the Context (spec §5: "the Context is the sole owner"); resource
// constructors take a reference to it rather than reaching for a package
// global, per Design Notes' "replace singletons with an explicit Context".
type IDGen struct {
	nextObjectID int64
	nextStateID  uint64
}

// NewIDGen constructs a fresh allocator. Every Context owns exactly one.
func NewIDGen() *IDGen { return &IDGen{} }

func (g *IDGen) allocObjectID() int64 { return atomic.AddInt64(&g.nextObjectID, 1) }
func (g *IDGen) allocStateID() uint64 { return atomic.AddUint64(&g.nextStateID, 1) }

// Resource is the kind-generic interface shared by Material and Product.
type Resource interface {
	ObjectID() int64
	StateID() uint64
	Kind() Kind
	Quantity() float64
	PackageName() string
	// Clone returns an untracked copy: a new object-id, the same
	// state otherwise, and emits no Datum (spec §4.A).
	Clone() Resource
	// ExtractRes removes qty from this resource and returns it as a
	// freshly-identified resource of the same composition/quality.
	ExtractRes(qty float64) (Resource, error)
	// Package subdivides this resource per pkg's fill strategy.
	Package(pkg *Package, src *rng.Source) ([]Resource, error)
}

// base holds the fields and bookkeeping shared by all Resource kinds.
type base struct {
	mu      sync.Mutex
	gen     *IDGen
	objID   int64
	stateID uint64
	qty     float64
	pkgName string
}

func newBase(gen *IDGen, qty float64, pkgName string) base {
	return base{
		gen:     gen,
		objID:   gen.allocObjectID(),
		stateID: gen.allocStateID(),
		qty:     qty,
		pkgName: pkgName,
	}
}

func (b *base) ObjectID() int64     { return b.objID }
func (b *base) Quantity() float64   { return b.qty }
func (b *base) PackageName() string { return b.pkgName }
func (b *base) StateID() uint64     { b.mu.Lock(); defer b.mu.Unlock(); return b.stateID }
func (b *base) bumpState()          { b.stateID = b.gen.allocStateID() }
func (b *base) setQty(q float64)    { b.qty = q }

// tagPackage renames the package a resource was drawn into. Promoted onto
// *Material and *Product via struct embedding.
func (b *base) tagPackage(name string) { b.pkgName = name }

// packageGeneric implements the Package loop shared by Material and
// Product (spec.md §4.A): draw until the residual is at or below
// pkg.FillMin, tagging each draw with the package name. Unpackaged is
// identity: the resource is returned unsplit.
func packageGeneric(r Resource, pkg *Package, src *rng.Source) ([]Resource, error) {
	if pkg.Name == Unpackaged.Name {
		return []Resource{r}, nil
	}
	var out []Resource
	for r.Quantity() > pkg.FillMin+Epsilon {
		target, err := pkg.GetFillMass(r.Quantity(), src)
		if err != nil {
			return nil, err
		}
		draw := math.Min(r.Quantity(), target)
		if draw <= 0 {
			break
		}
		drawn, err := r.ExtractRes(draw)
		if err != nil {
			return nil, err
		}
		if tagger, ok := drawn.(interface{ tagPackage(string) }); ok {
			tagger.tagPackage(pkg.Name)
		}
		out = append(out, drawn)
	}
	return out, nil
}

// checkExtract validates a proposed extraction of qty from available,
// returning the kernel's standard ValueError on underflow.
func checkExtract(qty, available float64) error {
	if qty < 0 {
		return cycluserr.Newf(cycluserr.KindValueError, "extract quantity %v is negative", qty)
	}
	if qty > available+Epsilon {
		return cycluserr.Newf(cycluserr.KindValueError, "extract quantity %v exceeds available %v", qty, available)
	}
	return nil
}

// clampDrawn avoids a residual of exactly zero turning negative from
// floating point error after an extraction at the boundary.
func clampDrawn(qty, available float64) float64 {
	if qty > available {
		return available
	}
	return qty
}

// PackageStrategy selects how Package subdivides bulk quantity.
type PackageStrategy int

const (
	StrategyFirst PackageStrategy = iota
	StrategyEqual
	StrategyUniform
	StrategyNormal
)

// Package is a shared-immutable fill specification (spec.md §3 Package).
type Package struct {
	Name     string
	FillMin  float64
	FillMax  float64
	Strategy PackageStrategy
}

// Unpackaged is the pre-registered, unsplittable package: [0, +Inf] with
// identity semantics (spec.md §4.D: "the special package 'unpackaged' ...
// pre-registered with [0, ∞] and identity semantics").
var Unpackaged = &Package{Name: "unpackaged", FillMin: 0, FillMax: math.Inf(1), Strategy: StrategyFirst}

// GetFillMass returns this package's per-draw target quantity for a
// resource currently holding `available`. src supplies randomness for the
// Uniform and Normal strategies; it may be nil for First/Equal.
func (p *Package) GetFillMass(available float64, src *rng.Source) (float64, error) {
	if p.Name == Unpackaged.Name {
		return available, nil
	}
	var target float64
	switch p.Strategy {
	case StrategyFirst:
		target = math.Min(available, p.FillMax)
	case StrategyEqual:
		target = math.Min(available, midpoint(p.FillMin, p.FillMax))
	case StrategyUniform:
		if src == nil {
			target = math.Min(available, midpoint(p.FillMin, p.FillMax))
		} else {
			target = math.Min(available, src.Uniform(p.FillMin, p.FillMax))
		}
	case StrategyNormal:
		mu := midpoint(p.FillMin, p.FillMax)
		sigma := (p.FillMax - p.FillMin) / 6
		if src == nil || sigma <= 0 {
			target = math.Min(available, mu)
		} else {
			target = math.Min(available, src.Normal(mu, sigma, p.FillMin, p.FillMax))
		}
	default:
		target = math.Min(available, p.FillMax)
	}
	if target > maxPackageQuantity {
		return 0, cycluserr.Newf(cycluserr.KindValueError, "package %s draw %v exceeds max representable quantity", p.Name, target)
	}
	return target, nil
}

func midpoint(lo, hi float64) float64 {
	if math.IsInf(hi, 1) {
		return lo
	}
	return (lo + hi) / 2
}
