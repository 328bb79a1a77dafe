package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docstore/pkg/api"
	"github.com/adfharrison1/go-docstore/pkg/storage"
)

func TestServer_Lifecycle(t *testing.T) {
	srv := NewServer(storage.WithDataDir(t.TempDir()))

	// health reports the store as unavailable until Start
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, srv.Start())

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/collections/users/documents", strings.NewReader(`{"name":"Alice"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, srv.Stop())

	// data written before Stop is there after a restart on the same root
	dir := srv.Engine().GetStats()["data_dir"].(string)
	restarted := NewServer(storage.WithDataDir(dir))
	require.NoError(t, restarted.Start())
	defer restarted.Stop()

	count, err := restarted.Engine().Count("users", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServer_NotFound(t *testing.T) {
	srv := NewServer(storage.WithDataDir(t.TempDir()))
	require.NoError(t, srv.Start())
	defer srv.Stop()

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Message, "GET /nope")
}

func TestRequestLoggerMiddleware(t *testing.T) {
	called := false
	handler := requestLoggerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/anything", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
