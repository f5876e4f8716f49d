package handlers

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"net/http"
	"ulascansenturk/weather-exporter/internal/metrics"
)

const MetricsPath = "/metrics"

const landingPage = `<html>
<head><title>OpenWeatherMap Exporter</title></head>
<body>
<h1>OpenWeatherMap Exporter</h1>
<p><a href="%s">Metrics</a></p>
</body>
</html>
`

type Snapshotter interface {
	Snapshot() (string, error)
}

type MetricsHandler struct {
	snapshotter Snapshotter
}

func NewMetricsHandler(snapshotter Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == MetricsPath:
		h.GetMetrics(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		respondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	case r.Method == http.MethodGet && r.URL.Path == "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, landingPage, MetricsPath)
	default:
		respondWithError(w, http.StatusNotFound, "not found")
	}
}

// GetMetrics writes the current registry contents. It never waits on a poll
// cycle, only on at most one location update.
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	text, err := h.snapshotter.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("failed to render metrics")
		respondWithError(w, http.StatusInternalServerError, "failed to render metrics: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", metrics.ContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write([]byte(text)); err != nil {
		log.Debug().Err(err).Msg("failed to write metrics response")
	}
}

// Instrument counts scrape requests and their latency in reg.
func Instrument(next http.Handler, reg prometheus.Registerer) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "owm",
		Name:      "http_requests_total",
		Help:      "HTTP requests served by the exporter by code and method.",
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "owm",
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests served by the exporter.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"code", "method"})

	reg.MustRegister(requests, duration)

	return promhttp.InstrumentHandlerDuration(duration,
		promhttp.InstrumentHandlerCounter(requests, next))
}
