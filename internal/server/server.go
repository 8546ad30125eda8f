// Package server exposes the routing engine over HTTP: submission,
// synthetic traffic, ticket listing and operator updates, plus health
// and Prometheus endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.loggingMiddleware)

	r.HandleFunc("/api/classify-and-route", h.ClassifyAndRoute).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-demo-query", h.GenerateDemoQuery).Methods(http.MethodPost)
	r.HandleFunc("/api/queries", h.ListQueries).Methods(http.MethodGet)
	r.HandleFunc("/api/queries", h.DeleteQueries).Methods(http.MethodDelete)
	r.HandleFunc("/api/queries/{id}", h.UpdateQuery).Methods(http.MethodPatch)
	r.HandleFunc("/api/queries/{id}/resubmit", h.ResubmitQuery).Methods(http.MethodPost)
	r.HandleFunc("/api/demo-session/start", h.StartDemoSession).Methods(http.MethodPost)
	r.HandleFunc("/api/demo-session/stop", h.StopDemoSession).Methods(http.MethodPost)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// New builds the HTTP server. The write timeout is sized for the
// slowest path, a classification round trip to the model provider.
func New(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}
