package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body statusResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestStatusServer(t *testing.T) {
	mounts := func(ctx context.Context) (any, error) {
		return []map[string]any{{"workspace": "/work/repo", "port": 1100}}, nil
	}
	router := NewServer(ServerConfig{}, mounts).router()

	t.Run("Health", func(t *testing.T) {
		rec, body := get(t, router, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", body.Status)
	})

	t.Run("Mounts", func(t *testing.T) {
		rec, body := get(t, router, "/mounts")
		assert.Equal(t, http.StatusOK, rec.Code)
		data, ok := body.Data.([]any)
		require.True(t, ok)
		require.Len(t, data, 1)
		assert.Equal(t, "/work/repo", data[0].(map[string]any)["workspace"])
	})

	t.Run("MetricsDisabled", func(t *testing.T) {
		rec, _ := get(t, router, "/metrics")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("MountsError", func(t *testing.T) {
		failing := NewServer(ServerConfig{}, func(ctx context.Context) (any, error) {
			return nil, errors.New("mount actor closed")
		}).router()
		rec, body := get(t, failing, "/mounts")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "mount actor closed", body.Error)
	})
}

func TestNoopMetrics(t *testing.T) {
	// No-ops must be usable without a registry.
	assert.False(t, IsEnabled())
	NewNoopNFSMetrics().RecordRequest("GETATTR", "/w", 0, "NFS3_OK")
	NewNoopRPCMetrics().RecordRequestStart("READ_FILE")
	NewNoopMountMetrics().SetServedMounts(3)
}
