package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapping/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{
		Host:    "localhost",
		Port:    "0",
		DataDir: t.TempDir(),
		Logger:  logger.New(&strings.Builder{}, "error", "text"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plat-mapping")
	assert.NotEmpty(t, rec.Header().Values("Link"))

	rec = get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, strings.Join(rec.Header().Values("Link"), ","), `rel="features"`)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/viewer").Code, "no web dir")
}

func TestInfoAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/api/v1/info")
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "file", info["store"])
	assert.Equal(t, "memory", info["cache"])
	assert.EqualValues(t, 0, info["feature_count"])

	get(t, srv, "/api/v1/features")
	rec = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapping_feature_pages_total")
	assert.Contains(t, rec.Body.String(), "mapping_http_requests_total")
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	srv := newTestServer(t)
	doc := srv.OpenAPI()
	for _, p := range []string{"/api/v1/features", "/api/v1/features/popup", "/api/v1/types/add", "/api/v1/editor/timeline"} {
		assert.Contains(t, doc.Paths, p)
	}
}

func TestUnknownStore(t *testing.T) {
	_, err := New(Config{DataDir: t.TempDir(), Store: "mongo"})
	assert.Error(t, err)
}
