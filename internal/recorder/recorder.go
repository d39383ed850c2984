// Package recorder implements the batching fact-table Recorder service
// (spec.md §4.C): a ring of typed Datums flushed in batches to pluggable
// Backends, stamped with a simulation id.
package recorder

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Field is one (name, typed value) pair of a Datum. Supported value kinds
// mirror spec.md §4.C: int, int64, bool, float32, float64, string,
// uuid.UUID, []byte (blob), []int, []float64, []string, and maps of the
// same. Value is held as `any`: neither Field nor AddVal restricts it to
// those kinds, and a value of any other type is accepted as is.
type Field struct {
	Name  string
	Value any
}

// Datum is an ordered list of typed fields destined for one output table
// (spec.md §3 Event/Datum).
type Datum struct {
	Title  string
	Fields []Field

	rec *Recorder
}

// AddVal appends a typed field and returns the Datum for chaining, the way
// the teacher's builder-style service constructors chain (e.g.
// zerolog.Event's With().Str()... pattern).
func (d *Datum) AddVal(name string, value any) *Datum {
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
	return d
}

// Record finalizes the Datum into the recorder's ring, validating it
// against this title's established schema.
func (d *Datum) Record() error {
	return d.rec.record(d)
}

// fieldSchema is the (name -> reflect.Type) signature established by the
// first Datum recorded under a title.
type fieldSchema map[string]reflect.Type

func schemaOf(d *Datum) fieldSchema {
	s := make(fieldSchema, len(d.Fields))
	for _, f := range d.Fields {
		s[f.Name] = reflect.TypeOf(f.Value)
	}
	return s
}

func (s fieldSchema) matches(d *Datum) bool {
	if len(d.Fields) != len(s) {
		return false
	}
	for _, f := range d.Fields {
		t, ok := s[f.Name]
		if !ok || t != reflect.TypeOf(f.Value) {
			return false
		}
	}
	return true
}

// Backend is a pluggable Datum-batch sink (spec.md §4.C).
type Backend interface {
	Notify(batch []*Datum) error
	Name() string
	Close() error
}

// Recorder is the process-scope batching service. One Recorder per
// simulation run.
type Recorder struct {
	mu        sync.Mutex
	simID     uuid.UUID
	dumpCount int
	batch     []*Datum
	schemas   map[string]fieldSchema
	backends  []Backend
	log       zerolog.Logger
}

// New constructs a Recorder stamping every Datum with simID, flushing
// every dumpCount Datums. dumpCount <= 0 defaults to 10000 (spec.md §4.C).
func New(simID uuid.UUID, dumpCount int, log zerolog.Logger) *Recorder {
	if dumpCount <= 0 {
		dumpCount = 10000
	}
	return &Recorder{
		simID:     simID,
		dumpCount: dumpCount,
		schemas:   make(map[string]fieldSchema),
		log:       log.With().Str("component", "recorder").Logger(),
	}
}

// SimID returns the simulation UUID stamped on every Datum.
func (r *Recorder) SimID() uuid.UUID { return r.simID }

// AddBackend registers a backend to receive flushed batches.
func (r *Recorder) AddBackend(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = append(r.backends, b)
}

// NewDatum returns a builder for a new Datum under title, pre-stamped
// with this run's simulation id.
func (r *Recorder) NewDatum(title string) *Datum {
	d := &Datum{Title: title, rec: r}
	d.AddVal("SimId", r.simID)
	return d
}

func (r *Recorder) record(d *Datum) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schema, known := r.schemas[d.Title]
	if !known {
		r.schemas[d.Title] = schemaOf(d)
	} else if !schema.matches(d) {
		return cycluserr.Newf(cycluserr.KindValueError, "datum %q schema mismatch with established schema", d.Title)
	}

	r.batch = append(r.batch, d)
	if len(r.batch) >= r.dumpCount {
		r.flushLocked()
	}
	return nil
}

func (r *Recorder) flushLocked() {
	if len(r.batch) == 0 {
		return
	}
	batch := r.batch
	r.batch = nil
	for _, b := range r.backends {
		if err := b.Notify(batch); err != nil {
			// Backend errors are caught and logged; they never abort
			// recording (spec.md §4.C, §7 propagation policy).
			r.log.Error().Err(err).Str("backend", b.Name()).Msg("backend notify failed")
		}
	}
}

// Flush forces a flush of the partial batch without closing backends.
func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

// Close flushes the partial batch and closes every backend.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()

	var firstErr error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			r.log.Error().Err(err).Str("backend", b.Name()).Msg("backend close failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("backend %s close: %w", b.Name(), err)
			}
		}
	}
	return firstErr
}
