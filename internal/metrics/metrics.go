package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "overlyric"

var (
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lyrics_resolutions_total",
		Help:      "Lyric resolutions by outcome and source.",
	}, []string{"outcome", "source"})

	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_requests_total",
		Help:      "Requests to the lyrics catalog by endpoint and result.",
	}, []string{"endpoint", "result"})

	ExtractionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "theme_extraction_failures_total",
		Help:      "Artwork theme extractions that fell back to the default theme.",
	})

	LineUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "line_updates_total",
		Help:      "Lyric lines pushed to the display.",
	})

	TrackChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "track_changes_total",
		Help:      "Track changes seen by the polling loop.",
	})
)

// Serve exposes /metrics until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
