package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreExposed(t *testing.T) {
	LineUpdates.Inc()
	Resolutions.WithLabelValues("ok", "cache").Inc()
	CatalogRequests.WithLabelValues("search", "200").Inc()

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "overlyric_line_updates_total")
	assert.Contains(t, body, `overlyric_lyrics_resolutions_total{outcome="ok",source="cache"}`)
	assert.Contains(t, body, `overlyric_catalog_requests_total{endpoint="search",result="200"}`)
}

func TestServe_EmptyAddrIsDisabled(t *testing.T) {
	assert.NoError(t, Serve(context.Background(), "", slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestServe_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
