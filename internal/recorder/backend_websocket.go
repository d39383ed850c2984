package recorder

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// wireDatum is the JSON-over-websocket projection of a Datum, used to
// stream flushed batches to live subscribers (status dashboards, external
// monitors) without making the kernel itself a GUI.
type wireDatum struct {
	Title  string         `json:"title"`
	Fields map[string]any `json:"fields"`
}

// WebSocketBackend streams every flushed batch to connected subscribers.
// It is a pluggable Backend like any other (spec.md §4.C); it performs no
// rendering or plotting itself, only transport, grounded on the teacher's
// use of nhooyr.io/websocket for live price/portfolio pushes.
type WebSocketBackend struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

// NewWebSocketBackend constructs an empty hub.
func NewWebSocketBackend(log zerolog.Logger) *WebSocketBackend {
	return &WebSocketBackend{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.With().Str("component", "websocket_backend").Logger(),
	}
}

// Register adds a subscriber connection. The caller (internal/server's
// upgrade handler) owns the connection's lifecycle and must call
// Unregister when it closes.
func (w *WebSocketBackend) Register(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[conn] = struct{}{}
}

// Unregister removes a subscriber connection.
func (w *WebSocketBackend) Unregister(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.clients, conn)
}

func (w *WebSocketBackend) Name() string { return "websocket" }

func (w *WebSocketBackend) Notify(batch []*Datum) error {
	wire := make([]wireDatum, 0, len(batch))
	for _, d := range batch {
		fields := make(map[string]any, len(d.Fields))
		for _, f := range d.Fields {
			fields[f.Name] = f.Value
		}
		wire = append(wire, wireDatum{Title: d.Title, Fields: fields})
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return err
	}

	w.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(w.clients))
	for c := range w.clients {
		conns = append(conns, c)
	}
	w.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Write(ctx, websocket.MessageText, payload); err != nil {
			w.log.Warn().Err(err).Msg("dropping unresponsive websocket subscriber")
			w.Unregister(c)
		}
		cancel()
	}
	return nil
}

func (w *WebSocketBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		_ = c.Close(websocket.StatusNormalClosure, "recorder closed")
	}
	w.clients = make(map[*websocket.Conn]struct{})
	return nil
}
