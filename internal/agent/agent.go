// Package agent implements the hierarchical agent graph (spec.md §3, §4.E):
// Region/Institution/Facility agents arranged in a containment forest with
// ancestor-by-kind-and-layer queries, build/decommission lifecycle, and the
// Trader/TimeListener capability interfaces other packages dispatch on.
//
// Per Design Notes, the cyclic parent/child pointer graph of the original
// is re-expressed as an arena: every cross-reference is an AgentID, never a
// raw pointer, and the Registry is the sole keeper of the forest's edges.
package agent

import (
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/metadata"
	"github.com/cyclus-sim/cyclus/internal/recorder"
)

// AgentID is a stable, never-reused handle into the Registry's arena.
type AgentID int64

// Kind distinguishes the three agent kinds in the containment tree.
type Kind int

const (
	KindRegion Kind = iota
	KindInstitution
	KindFacility
)

func (k Kind) String() string {
	switch k {
	case KindRegion:
		return "Region"
	case KindInstitution:
		return "Institution"
	case KindFacility:
		return "Facility"
	default:
		return "UnknownKind"
	}
}

// Agent is the data shared by every agent kind: identity, tree position,
// and lifecycle timing. Kind-specific wrapper types (Region, Institution,
// Facility) and the domain subtypes that embed them carry behavior via the
// small capability interfaces below rather than inheritance.
type Agent struct {
	reg *Registry

	id        AgentID
	prototype string
	specStr   string
	kind      Kind
	lifetime  int // months; -1 = indefinite

	hasParent bool
	parentID  AgentID
	children  []AgentID
	enterTime int
	built     bool

	// Tags holds this agent's key/value metadata (toolkit::Metadata,
	// original_source/src/toolkit/metadata.{h,cc}). Callers populate it
	// any time before RecordTags is called, typically in EnterNotify.
	Tags metadata.Tags
}

// RecordTags emits this agent's accumulated metadata tags as "Metadata"
// Datums. Agents that never call Set/SetUsage on Tags produce nothing.
func (a *Agent) RecordTags(rec *recorder.Recorder) error {
	return a.Tags.RecordTo(rec, int64(a.id), a.reg.timeNow())
}

func (a *Agent) ID() AgentID       { return a.id }
func (a *Agent) Prototype() string { return a.prototype }
func (a *Agent) SpecString() string { return a.specStr }
func (a *Agent) Kind() Kind        { return a.kind }
func (a *Agent) Lifetime() int     { return a.lifetime }
func (a *Agent) EnterTime() int    { return a.enterTime }
func (a *Agent) Built() bool       { return a.built }

// Children returns the ids of this agent's direct children, in insertion
// order.
func (a *Agent) Children() []AgentID {
	out := make([]AgentID, len(a.children))
	copy(out, a.children)
	return out
}

// ParentID returns this agent's parent id and whether it has one.
func (a *Agent) ParentID() (AgentID, bool) { return a.parentID, a.hasParent }

// Core satisfies Entity for *Agent itself; kind-specific wrappers and
// domain subtypes promote this via embedding.
func (a *Agent) Core() *Agent { return a }

// withContext annotates err with this agent's (prototype, spec, id) and
// the registry's current simulation time, per spec.md §7 ("all errors
// carry the agent's ... identity and current simulation time when
// thrown from inside an agent callback").
func (a *Agent) withContext(err error) error {
	return cycluserr.WithAgent(err, a.prototype, a.specStr, int64(a.id), a.reg.timeNow())
}

// Entity is the minimum capability every registered agent implementation
// provides: a way back to its core tree-position data. Build,
// Decommission and the ancestor queries operate purely in terms of Entity,
// so any Go type embedding *Agent (Region/Institution/Facility, or a
// domain-specific subtype of one of those) can participate in the tree.
type Entity interface {
	Core() *Agent
}

// EnterNotifiable agents are told when Build links them into the tree.
type EnterNotifiable interface {
	EnterNotify()
}

// DecomNotifiable agents are told when a direct child is decommissioned.
type DecomNotifiable interface {
	DecomNotify(child Entity)
}

// DecommissionChecker lets an Institution ask a child whether it is
// actually eligible for decommission once its lifetime has elapsed
// (spec.md §4.E Institution-specific behavior). Agents that don't
// implement it are always eligible once their lifetime condition holds.
type DecommissionChecker interface {
	CheckDecommissionCondition() bool
}

// Registry is the single arena owning every live agent and the forest's
// edges. It is owned by the Context (spec.md §4.D); agents hold only a
// non-owning reference to it.
type Registry struct {
	mu       sync.Mutex
	nextID   int64
	entities map[AgentID]Entity
	timeNow  func() int
}

// NewRegistry constructs an empty arena. timeNow supplies the current
// simulation tick for EnterTime stamping.
func NewRegistry(timeNow func() int) *Registry {
	return &Registry{entities: make(map[AgentID]Entity), timeNow: timeNow}
}

// NewAgentCore allocates a fresh, as-yet-unbuilt Agent core with a new
// object-id. The caller wraps it in a kind-specific type, optionally
// further embeds it in a domain subtype, then calls Register.
func (r *Registry) NewAgentCore(kind Kind, prototype, specStr string, lifetime int) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return &Agent{reg: r, id: AgentID(r.nextID), prototype: prototype, specStr: specStr, kind: kind, lifetime: lifetime}
}

// Register adds self to the arena so it is resolvable by id. It does not
// insert self into the tree; call Build for that.
func (r *Registry) Register(self Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[self.Core().id] = self
}

// Lookup resolves an AgentID to its live Entity, or (nil, false) if the
// id is unknown or has been decommissioned.
func (r *Registry) Lookup(id AgentID) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	return e, ok
}

// Live returns every currently-registered agent, in no particular order.
func (r *Registry) Live() []Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	return out
}

// isDescendant reports whether candidate is in self's descendant subtree
// (used to reject cyclic Build calls).
func (r *Registry) isDescendant(self, candidate AgentID) bool {
	e, ok := r.entities[self]
	if !ok {
		return false
	}
	for _, childID := range e.Core().children {
		if childID == candidate || r.isDescendant(childID, candidate) {
			return true
		}
	}
	return false
}

// Build links self under parent, stamps enter-time, and invokes
// EnterNotify (spec.md §4.E). Fails if parent is self, or parent is a
// descendant of self (would create a cycle), or self was already built.
func (r *Registry) Build(self, parent Entity) error {
	r.mu.Lock()
	core := self.Core()
	parentCore := parent.Core()

	if core.built {
		r.mu.Unlock()
		return core.withContext(cycluserr.Newf(cycluserr.KindStateError, "agent %d already built", core.id))
	}
	if core.id == parentCore.id {
		r.mu.Unlock()
		return core.withContext(cycluserr.Newf(cycluserr.KindValueError, "agent %d cannot be its own parent", core.id))
	}
	if r.isDescendant(core.id, parentCore.id) {
		r.mu.Unlock()
		return core.withContext(cycluserr.Newf(cycluserr.KindValueError, "parent %d is a descendant of agent %d", parentCore.id, core.id))
	}

	core.parentID = parentCore.id
	core.hasParent = true
	core.enterTime = r.timeNow()
	core.built = true
	parentCore.children = append(parentCore.children, core.id)
	r.mu.Unlock()

	if en, ok := self.(EnterNotifiable); ok {
		en.EnterNotify()
	}
	return nil
}

// BuildRoot registers self as a parentless root of the forest (a top-level
// Region with no containing agent), stamping enter-time and invoking
// EnterNotify exactly as Build does for a parented agent.
func (r *Registry) BuildRoot(self Entity) error {
	r.mu.Lock()
	core := self.Core()
	if core.built {
		r.mu.Unlock()
		return core.withContext(cycluserr.Newf(cycluserr.KindStateError, "agent %d already built", core.id))
	}
	core.hasParent = false
	core.enterTime = r.timeNow()
	core.built = true
	r.mu.Unlock()

	if en, ok := self.(EnterNotifiable); ok {
		en.EnterNotify()
	}
	return nil
}

// Decommission calls DecomNotify on self's parent, unlinks self from the
// tree (its children become parentless), and removes self from the arena
// (spec.md §4.E). Kind-specific registrations (trader, time-listener) are
// the caller's (Context's) responsibility to undo.
func (r *Registry) Decommission(self Entity) error {
	r.mu.Lock()
	core := self.Core()
	if !core.built {
		r.mu.Unlock()
		return core.withContext(cycluserr.Newf(cycluserr.KindStateError, "agent %d decommissioned before Build", core.id))
	}

	var parentEntity Entity
	if core.hasParent {
		parentEntity = r.entities[core.parentID]
	}
	children := append([]AgentID(nil), core.children...)
	r.mu.Unlock()

	if parentEntity != nil {
		if dn, ok := parentEntity.(DecomNotifiable); ok {
			dn.DecomNotify(self)
		}
	}

	r.mu.Lock()
	if parentEntity != nil {
		pc := parentEntity.Core()
		pc.children = removeID(pc.children, core.id)
	}
	for _, childID := range children {
		if childEntity, ok := r.entities[childID]; ok {
			cc := childEntity.Core()
			cc.hasParent = false
			cc.parentID = 0
		}
	}
	delete(r.entities, core.id)
	core.built = false
	r.mu.Unlock()
	return nil
}

func removeID(ids []AgentID, target AgentID) []AgentID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// GetAncestorOfKind walks self's parent chain counting matches of kind
// (spec.md §4.E). layer=1 is the nearest match, layer=k>1 the k-th
// nearest, layer=-1 the farthest (root-most) match. layer<=-2 or layer=0
// always return (nil, false), as does an absent match.
func (r *Registry) GetAncestorOfKind(self Entity, kind Kind, layer int) (Entity, bool) {
	if layer == 0 || layer <= -2 {
		return nil, false
	}

	r.mu.Lock()
	var matches []Entity
	cur := self.Core()
	for cur.hasParent {
		parent, ok := r.entities[cur.parentID]
		if !ok {
			break
		}
		if parent.Core().kind == kind {
			matches = append(matches, parent)
		}
		cur = parent.Core()
	}
	r.mu.Unlock()

	if len(matches) == 0 {
		return nil, false
	}
	if layer == -1 {
		return matches[len(matches)-1], true
	}
	idx := layer - 1
	if idx < 0 || idx >= len(matches) {
		return nil, false
	}
	return matches[idx], true
}

// InChain reports whether self is a strict ancestor of other.
func (r *Registry) InChain(self, other Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := other.Core()
	for cur.hasParent {
		if cur.parentID == self.Core().id {
			return true
		}
		parent, ok := r.entities[cur.parentID]
		if !ok {
			return false
		}
		cur = parent.Core()
	}
	return false
}

// Reachable reports whether self is reachable at time t, per its
// lifetime window [enter-time, enter-time+lifetime) (spec.md §3 Agent
// invariants). An indefinite lifetime (-1) is always reachable once built.
func Reachable(core *Agent, t int) bool {
	if !core.built {
		return false
	}
	if t < core.enterTime {
		return false
	}
	if core.lifetime < 0 {
		return true
	}
	return t < core.enterTime+core.lifetime
}
