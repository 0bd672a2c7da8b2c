package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/wspoll/internal/connection"
	"github.com/rickgao/wspoll/internal/metrics"
)

type statsSource interface {
	Stats() connection.Stats
}

// newHTTPHandler serves Prometheus metrics at metricsPath and a JSON
// health report at /health.
func newHTTPHandler(metricsPath string, collector *metrics.Collector, stats statsSource) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, collector.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		st := stats.Stats()

		health := struct {
			Status string           `json:"status"`
			Stats  connection.Stats `json:"stats"`
		}{
			Status: "healthy",
			Stats:  st,
		}

		if st.Phases["ready"] == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
