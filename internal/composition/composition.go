// Package composition implements the immutable, content-interned nuclide
// composition model (spec.md §3 Composition, §4.A Material-specific).
//
// A Composition is a normalized mapping from nuclide id to mass fraction.
// Two compositions built from the same (basis, fractions) share identity
// and QualId, mirroring the teacher's pattern of interning expensive,
// immutable value objects behind a lookup table (see
// internal/modules/optimization's caching of covariance matrices) rather
// than reallocating them per use.
package composition

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
)

// Basis selects how raw input fractions are interpreted before
// normalization to mass fraction.
type Basis int

const (
	// Atom means input fractions are atom (mole) fractions.
	Atom Basis = iota
	// Mass means input fractions are already mass fractions.
	Mass
)

// massNumber approximates a nuclide's atomic mass by its mass number,
// derived from a ZZZAAASSSS-style id (Z*10,000,000 + A*10,000 + state).
// This is the "static atomic-mass table" spec.md calls external; a real
// deployment would substitute an exact physical table without changing
// this package's contract.
func massNumber(nucid int) float64 {
	a := (nucid / 10000) % 1000
	if a <= 0 {
		return 1
	}
	return float64(a)
}

// Composition is immutable once constructed. Its state-id never changes
// after creation (spec.md: "Immutable after creation; interned ... so
// identical compositions share identity and state-id").
type Composition struct {
	qualID   int64
	hash     string
	massFrac map[int]float64 // normalized, sums to 1 (or is empty)
}

// QualID is this composition's identity in the interning table and in the
// output Compositions table (spec.md §6).
func (c *Composition) QualID() int64 { return c.qualID }

// MassFrac returns the normalized mass fraction of nucid (0 if absent).
func (c *Composition) MassFrac(nucid int) float64 { return c.massFrac[nucid] }

// Nuclides returns the set of nuclide ids present, in deterministic
// (ascending) order.
func (c *Composition) Nuclides() []int {
	ids := make([]int, 0, len(c.massFrac))
	for id := range c.massFrac {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MassMap returns qty scaled by each nuclide's mass fraction, i.e. the
// absolute mass-per-nuclide this composition implies for a resource of
// total quantity qty.
func (c *Composition) MassMap(qty float64) map[int]float64 {
	out := make(map[int]float64, len(c.massFrac))
	for id, f := range c.massFrac {
		out[id] = f * qty
	}
	return out
}

// normalize converts raw (basis, fractions) into a canonical mass-fraction
// map summing to 1 (or empty if the input was empty / all-zero).
func normalize(basis Basis, raw map[int]float64) (map[int]float64, error) {
	massWeighted := make(map[int]float64, len(raw))
	total := 0.0
	for nucid, f := range raw {
		if f < 0 {
			return nil, cycluserr.Newf(cycluserr.KindValueError, "composition fraction for nuclide %d is negative (%v)", nucid, f)
		}
		m := f
		if basis == Atom {
			m = f * massNumber(nucid)
		}
		massWeighted[nucid] = m
		total += m
	}
	if total <= 0 {
		return map[int]float64{}, nil
	}
	out := make(map[int]float64, len(massWeighted))
	for nucid, m := range massWeighted {
		out[nucid] = m / total
	}
	return out, nil
}

// contentHash computes a canonical hash over the sorted (nucid, fraction)
// pairs, rounded to guard against floating-point jitter producing spurious
// distinct entries for what is semantically the same composition.
func contentHash(massFrac map[int]float64) string {
	ids := make([]int, 0, len(massFrac))
	for id := range massFrac {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	h := sha256.New()
	buf := make([]byte, 8)
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf, uint64(int64(id)))
		h.Write(buf)
		rounded := math.Round(massFrac[id]*1e9) / 1e9
		binary.LittleEndian.PutUint64(buf, math.Float64bits(rounded))
		h.Write(buf)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Table is the context-level interning table keyed by content hash.
type Table struct {
	mu      sync.Mutex
	byHash  map[string]*Composition
	nextID  int64
	empty   *Composition
	emptied bool
}

// NewTable constructs an empty interning table.
func NewTable() *Table {
	return &Table{byHash: make(map[string]*Composition)}
}

// Intern returns the canonical Composition for (basis, raw), creating and
// caching it on first sight.
func (t *Table) Intern(basis Basis, raw map[int]float64) (*Composition, error) {
	massFrac, err := normalize(basis, raw)
	if err != nil {
		return nil, err
	}
	hash := contentHash(massFrac)

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.byHash[hash]; ok {
		return c, nil
	}
	t.nextID++
	c := &Composition{qualID: t.nextID, hash: hash, massFrac: massFrac}
	t.byHash[hash] = c
	return c, nil
}

// Empty returns the canonical zero-nuclide composition, interned once.
func (t *Table) Empty() *Composition {
	c, _ := t.Intern(Mass, nil)
	return c
}

// Len reports how many distinct compositions have been interned.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHash)
}
