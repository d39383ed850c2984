package recorder

import "sync"

// MemoryBackend accumulates every batch it is notified of, in order. It
// exists for tests and for small runs that don't need durable output.
type MemoryBackend struct {
	mu     sync.Mutex
	name   string
	Datums []*Datum
	closed bool
}

// NewMemoryBackend constructs a MemoryBackend named name.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{name: name}
}

func (m *MemoryBackend) Notify(batch []*Datum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Datums = append(m.Datums, batch...)
	return nil
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MemoryBackend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ByTitle filters accumulated Datums down to one table title.
func (m *MemoryBackend) ByTitle(title string) []*Datum {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Datum
	for _, d := range m.Datums {
		if d.Title == title {
			out = append(out, d)
		}
	}
	return out
}
