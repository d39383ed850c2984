// Package context implements the Context: the single process-scope
// registry spec.md §4.D and §5 call for in place of global singletons —
// the simulation clock, recipe and package tables, agent registry,
// recorder handle, and RNG source, all reachable from one value every
// agent holds a non-owning reference to.
package context

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cyclus-sim/cyclus/internal/agent"
	"github.com/cyclus-sim/cyclus/internal/composition"
	"github.com/cyclus-sim/cyclus/internal/recorder"
	"github.com/cyclus-sim/cyclus/internal/resource"
	"github.com/cyclus-sim/cyclus/internal/rng"
	"github.com/cyclus-sim/cyclus/internal/timeseries"
)

// Clock is the simulation's discrete time counter, advanced only by the
// time driver (spec.md §4.K).
type Clock struct {
	mu sync.Mutex
	t  int
}

// Now returns the current tick.
func (c *Clock) Now() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock to the next tick and returns it.
func (c *Clock) Advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t++
	return c.t
}

// RecipeTable maps a named recipe to its interned Composition, the
// loader-populated analog of the package table (spec.md §4.D).
type RecipeTable struct {
	mu      sync.Mutex
	recipes map[string]*composition.Composition
}

// NewRecipeTable constructs an empty RecipeTable.
func NewRecipeTable() *RecipeTable {
	return &RecipeTable{recipes: make(map[string]*composition.Composition)}
}

// Register associates name with comp. Overwrites any prior registration.
func (rt *RecipeTable) Register(name string, comp *composition.Composition) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.recipes[name] = comp
}

// Lookup resolves a recipe name to its Composition.
func (rt *RecipeTable) Lookup(name string) (*composition.Composition, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	c, ok := rt.recipes[name]
	return c, ok
}

// PackageTable maps a named package spec to its *resource.Package,
// pre-seeded with the "unpackaged" identity package (spec.md §4.D).
type PackageTable struct {
	mu       sync.Mutex
	packages map[string]*resource.Package
}

// NewPackageTable constructs a PackageTable pre-seeded with Unpackaged.
func NewPackageTable() *PackageTable {
	pt := &PackageTable{packages: make(map[string]*resource.Package)}
	pt.packages[resource.Unpackaged.Name] = resource.Unpackaged
	return pt
}

// Register adds a named package.
func (pt *PackageTable) Register(pkg *resource.Package) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.packages[pkg.Name] = pkg
}

// Lookup resolves a package by name.
func (pt *PackageTable) Lookup(name string) (*resource.Package, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.packages[name]
	return p, ok
}

// Context is the sole owner of the clock, recipe/package tables, agent
// registry, and recorder (spec.md §5 "Shared-resource policy"). It is
// constructed once per run and handed to the time driver and every
// agent as a plain field, never a package-level global.
type Context struct {
	Clock     *Clock
	Recipes   *RecipeTable
	Packages  *PackageTable
	Agents    *agent.Registry
	IDGen     *resource.IDGen
	CompTable *composition.Table
	Recorder  *recorder.Recorder
	RNG       *rng.Source
	TimeSeries *timeseries.Registry
	Log       zerolog.Logger

	mu            sync.Mutex
	schedDecom    []agent.AgentID
	timeListeners []TimeListener
}

// TimeListener is any agent the time driver calls Tick/Tock on every
// time step (spec.md §4.K). Defined here, not in package agent, for the
// same import-cycle-avoidance reason as exchange.Trader.
type TimeListener interface {
	agent.Entity
	Tick()
	Tock()
}

// New constructs a fresh Context. The agent Registry's timeNow hook is
// wired to this Context's Clock so agent enter-time stamping always
// reflects the driver's notion of "now". simID stamps every Datum the
// run's Recorder emits.
func New(seed int64, simID uuid.UUID, dumpCount int, log zerolog.Logger) *Context {
	clock := &Clock{}
	ctx := &Context{
		Clock:     clock,
		Recipes:   NewRecipeTable(),
		Packages:  NewPackageTable(),
		IDGen:     resource.NewIDGen(),
		CompTable:  composition.NewTable(),
		RNG:        rng.New(seed),
		TimeSeries: timeseries.NewRegistry(),
		Log:        log,
	}
	ctx.Agents = agent.NewRegistry(clock.Now)
	ctx.Recorder = recorder.New(simID, dumpCount, log)
	return ctx
}

// RegisterTimeListener adds a listener to the insertion-ordered list the
// driver calls Tick/Tock on every step (spec.md §5 ordering guarantee).
func (c *Context) RegisterTimeListener(tl TimeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeListeners = append(c.timeListeners, tl)
}

// UnregisterTimeListener removes a listener by agent id, used when its
// agent is decommissioned.
func (c *Context) UnregisterTimeListener(id agent.AgentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.timeListeners[:0]
	for _, tl := range c.timeListeners {
		if tl.Core().ID() != id {
			out = append(out, tl)
		}
	}
	c.timeListeners = out
}

// TimeListeners returns a stable snapshot of the registered listeners in
// insertion order (spec.md §4.K step 2: "snapshot of list").
func (c *Context) TimeListeners() []TimeListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TimeListener(nil), c.timeListeners...)
}

// SchedDecom enqueues id for decommission at the end of the current time
// step (spec.md §4.K step 6). It is the hook agent.Institution.Tock
// invokes and the hook BuyPolicy-style agents can call on themselves.
func (c *Context) SchedDecom(id agent.AgentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedDecom = append(c.schedDecom, id)
}

// DrainSchedDecom returns and clears the pending decommission queue.
func (c *Context) DrainSchedDecom() []agent.AgentID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.schedDecom
	c.schedDecom = nil
	return out
}
