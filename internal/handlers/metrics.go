package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_console_fetch_total",
			Help: "Total number of settings fetches",
		},
		[]string{"panel", "outcome"},
	)

	saveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_console_save_total",
			Help: "Total number of settings saves",
		},
		[]string{"panel", "outcome"},
	)

	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_console_upstream_latency_seconds",
			Help:    "Latency of upstream settings calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"panel", "operation"},
	)

	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admin_console_ws_clients",
		Help: "Number of connected console WebSocket clients",
	})
)

func init() {
	if err := prometheus.Register(fetchTotal); err != nil {
		log.Printf("[METRICS] Failed to register fetchTotal: %v", err)
	}
	if err := prometheus.Register(saveTotal); err != nil {
		log.Printf("[METRICS] Failed to register saveTotal: %v", err)
	}
	if err := prometheus.Register(upstreamLatency); err != nil {
		log.Printf("[METRICS] Failed to register upstreamLatency: %v", err)
	}
	if err := prometheus.Register(wsClients); err != nil {
		log.Printf("[METRICS] Failed to register wsClients: %v", err)
	}
}

func RecordFetch(panel, outcome string, seconds float64) {
	fetchTotal.WithLabelValues(panel, outcome).Inc()
	upstreamLatency.WithLabelValues(panel, "fetch").Observe(seconds)
}

func RecordSave(panel, outcome string, seconds float64) {
	saveTotal.WithLabelValues(panel, outcome).Inc()
	upstreamLatency.WithLabelValues(panel, "save").Observe(seconds)
}

func SetWSClients(n int) {
	wsClients.Set(float64(n))
}

type MetricsHandler struct {
	username    string
	password    string
	promHandler http.Handler
}

func NewMetricsHandler(username, password string) *MetricsHandler {
	return &MetricsHandler{
		username:    username,
		password:    password,
		promHandler: promhttp.Handler(),
	}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(w, r) {
		return
	}
	h.promHandler.ServeHTTP(w, r)
}

func (h *MetricsHandler) authenticate(w http.ResponseWriter, r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok || username != h.username || password != h.password {
		w.Header().Set("WWW-Authenticate", `Basic realm="Prometheus Metrics"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *MetricsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/metrics", h.ServeHTTP)
}
