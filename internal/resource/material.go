package resource

import (
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

// Material is a Resource specialization carrying an isotopic composition
// (spec.md §3 Material, §4.A Material-specific).
type Material struct {
	base
	comp *composition.Composition
	tbl  *composition.Table
}

// NewMaterial allocates a fresh Material with a new object-id. tbl is the
// context-owned interning table every composition mutation re-interns
// through, so equivalent compositions keep sharing identity (spec.md §3
// Composition).
func NewMaterial(gen *IDGen, tbl *composition.Table, qty float64, comp *composition.Composition) *Material {
	return &Material{base: newBase(gen, qty, Unpackaged.Name), comp: comp, tbl: tbl}
}

func (m *Material) Kind() Kind                            { return KindMaterial }
func (m *Material) Composition() *composition.Composition { return m.comp }

// Clone returns an untracked copy with a fresh object-id; no Datum emitted.
func (m *Material) Clone() Resource {
	return &Material{base: newBase(m.gen, m.qty, m.pkgName), comp: m.comp, tbl: m.tbl}
}

// ExtractRes removes qty from self and returns it as a new Material with
// the same composition. Both self and the result bump state-id.
func (m *Material) ExtractRes(qty float64) (Resource, error) {
	if err := checkExtract(qty, m.qty); err != nil {
		return nil, err
	}
	drawn := clampDrawn(qty, m.qty)
	out := &Material{base: newBase(m.gen, drawn, m.pkgName), comp: m.comp, tbl: m.tbl}
	m.setQty(m.qty - drawn)
	m.bumpState()
	return out, nil
}

// Absorb folds other's composition into self, weighted by quantity, and
// empties other. Fails if other is not a Material.
func (m *Material) Absorb(other Resource) error {
	otherMat, ok := other.(*Material)
	if !ok {
		return cycluserr.Newf(cycluserr.KindValueError, "cannot absorb %s into Material", other.Kind())
	}
	q1, q2 := m.qty, otherMat.qty
	total := q1 + q2
	if total <= 0 {
		m.setQty(0)
		otherMat.setQty(0)
		m.bumpState()
		otherMat.bumpState()
		return nil
	}

	ids := make(map[int]bool)
	for _, id := range m.comp.Nuclides() {
		ids[id] = true
	}
	for _, id := range otherMat.comp.Nuclides() {
		ids[id] = true
	}
	merged := make(map[int]float64, len(ids))
	for id := range ids {
		merged[id] = (m.comp.MassFrac(id)*q1 + otherMat.comp.MassFrac(id)*q2) / total
	}

	newComp, err := m.tbl.Intern(composition.Mass, merged)
	if err != nil {
		return err
	}
	m.comp = newComp
	m.setQty(total)
	m.bumpState()
	otherMat.setQty(0)
	otherMat.bumpState()
	return nil
}

// Extract removes qty of the given composition subset from self,
// returning a new Material carrying exactly comp. Fails if any nuclide in
// comp is under-represented in self beyond Epsilon.
func (m *Material) Extract(qty float64, comp *composition.Composition) (*Material, error) {
	if qty < 0 {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "extract quantity %v is negative", qty)
	}
	selfMass := m.comp.MassMap(m.qty)
	want := comp.MassMap(qty)
	for nucid, wantMass := range want {
		if selfMass[nucid] < wantMass-Epsilon {
			return nil, cycluserr.Newf(cycluserr.KindValueError, "nuclide %d under-represented: have %v want %v", nucid, selfMass[nucid], wantMass)
		}
	}
	residual := make(map[int]float64, len(selfMass))
	for nucid, mass := range selfMass {
		residual[nucid] = mass - want[nucid]
	}
	residualTotal := 0.0
	for _, mass := range residual {
		residualTotal += mass
	}
	if residualTotal < 0 {
		residualTotal = 0
	}
	residualFrac := make(map[int]float64, len(residual))
	if residualTotal > 0 {
		for id, mass := range residual {
			if mass < 0 {
				mass = 0
			}
			residualFrac[id] = mass / residualTotal
		}
	}
	newComp, err := m.tbl.Intern(composition.Mass, residualFrac)
	if err != nil {
		return nil, err
	}
	m.comp = newComp
	m.setQty(residualTotal)
	m.bumpState()

	out := &Material{base: newBase(m.gen, qty, m.pkgName), comp: comp, tbl: m.tbl}
	return out, nil
}

// Package subdivides self per pkg's fill strategy, extracting draws until
// the residual is at or below pkg.FillMin.
func (m *Material) Package(pkg *Package, src *rng.Source) ([]Resource, error) {
	return packageGeneric(m, pkg, src)
}
