package agent

// Region is the root-most agent kind. Domain subtypes embed *Region to
// pick up tree navigation and lifecycle plumbing.
type Region struct{ *Agent }

// NewRegion wraps a fresh core as a Region and registers it.
func NewRegion(reg *Registry, prototype, specStr string, lifetime int) *Region {
	r := &Region{Agent: reg.NewAgentCore(KindRegion, prototype, specStr, lifetime)}
	reg.Register(r)
	return r
}

// Institution sits between Region and Facility. Its Tock implementation
// drives the per-tick lifetime-based decommission check (spec.md §4.E
// Institution-specific behavior).
type Institution struct {
	*Agent
	schedDecom func(AgentID)
}

// NewInstitution wraps a fresh core as an Institution and registers it.
// schedDecom is the Context's SchedDecom hook, invoked for any child whose
// lifetime has elapsed and whose CheckDecommissionCondition (if any)
// passes.
func NewInstitution(reg *Registry, prototype, specStr string, lifetime int, schedDecom func(AgentID)) *Institution {
	i := &Institution{Agent: reg.NewAgentCore(KindInstitution, prototype, specStr, lifetime), schedDecom: schedDecom}
	reg.Register(i)
	return i
}

// Tock checks every direct child with a positive, elapsed lifetime and
// schedules it for decommission if eligible. Lifetime == 0 is never acted
// on by this rule (spec.md §8 boundary behavior); lifetime == -1 is
// indefinite and also never acted on.
func (i *Institution) Tock() {
	now := i.reg.timeNow()
	for _, childID := range i.Children() {
		child, ok := i.reg.Lookup(childID)
		if !ok {
			continue
		}
		cc := child.Core()
		if cc.lifetime <= 0 {
			continue
		}
		if now < cc.enterTime+cc.lifetime {
			continue
		}
		eligible := true
		if checker, ok := child.(DecommissionChecker); ok {
			eligible = checker.CheckDecommissionCondition()
		}
		if eligible {
			i.schedDecom(childID)
		}
	}
}

// Facility is the leaf agent kind. Domain subtypes embed *Facility and
// add Trader / CommodityProducer / TimeListener methods as needed
// (spec.md: "Facility implements Trader optionally").
type Facility struct{ *Agent }

// NewFacility wraps a fresh core as a Facility and registers it.
func NewFacility(reg *Registry, prototype, specStr string, lifetime int) *Facility {
	f := &Facility{Agent: reg.NewAgentCore(KindFacility, prototype, specStr, lifetime)}
	reg.Register(f)
	return f
}

// GetRegion is sugar for GetAncestorOfKind(Region, 1).
func GetRegion(reg *Registry, self Entity) (Entity, bool) {
	return reg.GetAncestorOfKind(self, KindRegion, 1)
}

// GetInstitution is sugar for GetAncestorOfKind(Institution, 1).
func GetInstitution(reg *Registry, self Entity) (Entity, bool) {
	return reg.GetAncestorOfKind(self, KindInstitution, 1)
}
