// Package timeseries records named per-time-step quantities as
// "TimeSeries<name>" Datums and fans them out to registered listeners,
// ported from the upstream toolkit::RecordTimeSeries
// (original_source/src/toolkit/timeseries.{h,cc}). Unlike the upstream's
// process-global TIME_SERIES_LISTENERS map, the listener set lives on a
// Registry owned by the Context, per spec.md §5's "replace singletons
// with an explicit Context".
package timeseries

import (
	"sync"

	"github.com/cyclus-sim/cyclus/internal/recorder"
)

// Named series the upstream ships as TimeSeriesType specializations; their
// units must be adhered to strictly (MWe, kg SWU, kg respectively).
const (
	Power         = "Power"
	EnrichmentSWU = "EnrichmentSWU"
	EnrichmentFeed = "EnrichmentFeed"
)

// Listener is called with every value recorded under the series name it
// was registered for.
type Listener func(agentID int64, time int, value any)

// Registry owns the per-name listener fan-out list for one simulation run.
type Registry struct {
	mu        sync.Mutex
	listeners map[string][]Listener
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string][]Listener)}
}

// Listen registers fn to be called on every future Record under name.
func (r *Registry) Listen(name string, fn Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[name] = append(r.listeners[name], fn)
}

func (r *Registry) fanOut(name string, agentID int64, time int, value any) {
	r.mu.Lock()
	fns := append([]Listener(nil), r.listeners[name]...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(agentID, time, value)
	}
}

// Record writes a "TimeSeries<name>" Datum (AgentId, Time, Value) and
// fans value out to every listener registered for name.
func Record[T any](reg *Registry, rec *recorder.Recorder, name string, agentID int64, time int, value T) error {
	if rec != nil {
		err := rec.NewDatum("TimeSeries" + name).
			AddVal("AgentId", agentID).
			AddVal("Time", int64(time)).
			AddVal("Value", value).
			Record()
		if err != nil {
			return err
		}
	}
	if reg != nil {
		reg.fanOut(name, agentID, time, value)
	}
	return nil
}
