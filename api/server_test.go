package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStateProvider struct {
	snapshot map[string]interface{}
}

func (f *fakeStateProvider) State(ctx context.Context) (map[string]interface{}, error) {
	return f.snapshot, nil
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	srv := New(Config{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestStateHandler_ReturnsProviderSnapshot(t *testing.T) {
	provider := &fakeStateProvider{snapshot: map[string]interface{}{"pending_writeoffs": 3}}
	srv := New(Config{}, nil, provider, nil)
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending_writeoffs")
}

func TestStateHandler_NilProviderReturnsEmptyObject(t *testing.T) {
	srv := New(Config{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()

	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}
