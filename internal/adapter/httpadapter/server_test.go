package httpadapter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/coral-risk-etl/internal/adapter/httpadapter"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(checks ...sharedobs.ReadinessChecker) *httpadapter.Server {
	return httpadapter.NewServer(":0", slog.New(slog.NewTextHandler(io.Discard, nil)), checks...)
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockReadiness{err: errors.New("no run yet")}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores readiness")
}

func TestReadyzReturns200WhenAllReady(t *testing.T) {
	rec := get(newTestServer(&mockReadiness{}, &mockReadiness{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenAnyNotReady(t *testing.T) {
	rec := get(newTestServer(&mockReadiness{}, &mockReadiness{err: errors.New("database is locked")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestReadyzWithoutChecks(t *testing.T) {
	rec := get(newTestServer(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
