package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	cyclusctx "github.com/cyclus-sim/cyclus/internal/context"
)

func newTestServer() *Server {
	cc := cyclusctx.New(1, uuid.New(), 100, zerolog.Nop())
	return New(Config{Log: zerolog.Nop(), Ctx: cc, Port: 0})
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestHandleStatusReturnsTickAndSimID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(0), body["tick"])
	require.NotEmpty(t, body["sim_id"])
}

func TestEventsStreamRouteAbsentWithoutWebSocketBackend(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/events/stream", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
