// Package buffer implements ResourceBuffer, the bounded multiset of
// resources with FIFO/LIFO pop and quantity-precise extraction (spec.md
// §3, §4.B).
package buffer

import (
	"math"
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"gonum.org/v1/gonum/floats"
)

// Direction selects which end of the FIFO order Pop draws from.
type Direction int

const (
	// Front is FIFO: the oldest pushed resource.
	Front Direction = iota
	// Back is LIFO: the most recently pushed resource.
	Back
)

// ResourceBuffer is an ordered multiset with capacity C (default +Inf)
// and a running total Q, kept equal to a Kahan-compensated sum of member
// quantities (spec.md §4.B invariant).
type ResourceBuffer struct {
	mu       sync.Mutex
	capacity float64
	members  []resource.Resource
	total    float64
}

// New constructs a ResourceBuffer with the given capacity. Pass
// math.Inf(1) for an unbounded buffer.
func New(capacity float64) *ResourceBuffer {
	if capacity == 0 {
		capacity = math.Inf(1)
	}
	return &ResourceBuffer{capacity: capacity}
}

// Capacity returns the buffer's configured capacity.
func (b *ResourceBuffer) Capacity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Quantity returns the running total Q.
func (b *ResourceBuffer) Quantity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Count returns the number of member resources.
func (b *ResourceBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members)
}

// resum recomputes total via a stable Kahan sum over current members, to
// bound drift across many pushes/pops (spec.md §4.B invariant).
func (b *ResourceBuffer) resum() {
	qtys := make([]float64, len(b.members))
	for i, m := range b.members {
		qtys[i] = m.Quantity()
	}
	b.total = floats.SumCompensated(qtys) // Neumaier's variant of Kahan summation
}

func (b *ResourceBuffer) contains(r resource.Resource) bool {
	for _, m := range b.members {
		if m.ObjectID() == r.ObjectID() {
			return true
		}
	}
	return false
}

// Push adds r to the buffer. Fails if doing so would exceed capacity by
// more than resource.Epsilon, or if r is already present.
func (b *ResourceBuffer) Push(r resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushLocked(r)
}

func (b *ResourceBuffer) pushLocked(r resource.Resource) error {
	if b.contains(r) {
		return cycluserr.Newf(cycluserr.KindKeyError, "resource %d already present in buffer", r.ObjectID())
	}
	if b.total+r.Quantity() > b.capacity+resource.Epsilon {
		return cycluserr.Newf(cycluserr.KindValueError, "push of %v would exceed capacity %v (have %v)", r.Quantity(), b.capacity, b.total)
	}
	b.members = append(b.members, r)
	b.resum()
	return nil
}

// PushAll pushes every resource in rs, atomically: either all succeed or
// none are added.
func (b *ResourceBuffer) PushAll(rs []resource.Resource) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sum := 0.0
	seen := map[int64]bool{}
	for _, r := range rs {
		if seen[r.ObjectID()] || b.contains(r) {
			return cycluserr.Newf(cycluserr.KindKeyError, "resource %d already present", r.ObjectID())
		}
		seen[r.ObjectID()] = true
		sum += r.Quantity()
	}
	if b.total+sum > b.capacity+resource.Epsilon {
		return cycluserr.Newf(cycluserr.KindValueError, "pushAll of %v would exceed capacity %v (have %v)", sum, b.capacity, b.total)
	}
	b.members = append(b.members, rs...)
	b.resum()
	return nil
}

// Pop removes and returns one resource from the given end.
func (b *ResourceBuffer) Pop(dir Direction) (resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.members) == 0 {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "pop from empty buffer")
	}
	var r resource.Resource
	if dir == Front {
		r = b.members[0]
		b.members = b.members[1:]
	} else {
		last := len(b.members) - 1
		r = b.members[last]
		b.members = b.members[:last]
	}
	b.resum()
	return r, nil
}

// PopN removes and returns n resources in front (FIFO) order, without
// splitting any of them.
func (b *ResourceBuffer) PopN(n int) ([]resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < 0 {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "popN count %d is negative", n)
	}
	if n > len(b.members) {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "popN count %d exceeds member count %d", n, len(b.members))
	}
	out := append([]resource.Resource(nil), b.members[:n]...)
	b.members = b.members[n:]
	b.resum()
	return out, nil
}

// PopQty removes exactly qty of total quantity, splitting the last drawn
// resource via ExtractRes when the running draw overshoots qty.
func (b *ResourceBuffer) PopQty(qty float64) ([]resource.Resource, error) {
	return b.PopQtySlack(qty, 0)
}

// PopQtySlack is PopQty, but treats (Q <= qty <= Q+slack) as "drain
// all", avoiding a near-zero residual split.
func (b *ResourceBuffer) PopQtySlack(qty, slack float64) ([]resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if qty < 0 {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "popQty quantity %v is negative", qty)
	}
	if qty > b.total+math.Max(resource.Epsilon, slack) {
		return nil, cycluserr.Newf(cycluserr.KindValueError, "popQty quantity %v exceeds buffer total %v", qty, b.total)
	}

	if qty >= b.total-resource.Epsilon && qty <= b.total+slack {
		out := b.members
		b.members = nil
		b.resum()
		return out, nil
	}

	var out []resource.Resource
	remaining := qty
	for remaining > resource.Epsilon && len(b.members) > 0 {
		head := b.members[0]
		if head.Quantity() <= remaining+resource.Epsilon {
			out = append(out, head)
			remaining -= head.Quantity()
			b.members = b.members[1:]
			continue
		}
		split, err := head.ExtractRes(remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, split)
		remaining = 0
	}
	b.resum()
	return out, nil
}
