// Package server provides the read-only HTTP introspection API and
// live websocket event push for a running simulation, grounded on
// aristath-sentinel's internal/server.Server (chi router, cors
// middleware, recoverer/timeout stack).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	cyclusctx "github.com/cyclus-sim/cyclus/internal/context"
	"github.com/cyclus-sim/cyclus/internal/recorder"
)

// Config holds the parameters needed to stand up the server.
type Config struct {
	Log  zerolog.Logger
	Ctx  *cyclusctx.Context
	Port int
	WS   *recorder.WebSocketBackend // nil disables the /events/stream endpoint
}

// Server is the simulation's read-only status and live-event API.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	ctx    *cyclusctx.Context
	ws     *recorder.WebSocketBackend
}

// New constructs a Server, wiring routes but not yet listening.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		ctx:    cfg.Ctx,
		ws:     cfg.WS,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	if s.ws != nil {
		s.router.Get("/events/stream", s.handleEventsStream)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"tick":%d,"sim_id":%q}`, s.ctx.Clock.Now(), s.ctx.Recorder.SimID())
}

// handleEventsStream upgrades to a websocket connection and registers it
// with the recorder's WebSocketBackend, streaming every flushed Datum
// batch until the client disconnects.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	s.ws.Register(conn)
	defer s.ws.Unregister(conn)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		}
	}
}

// Start begins serving HTTP requests; blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
