// Package api exposes the persistence core over JSON HTTP. Handlers
// stay thin: they decode, call the core packages, and map sentinel
// errors onto status codes.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatdb/pkg/assets"
	"chatdb/pkg/auth"
	"chatdb/pkg/convindex"
	"chatdb/pkg/directory"
	"chatdb/pkg/metrics"
	"chatdb/pkg/syncer"
	"chatdb/pkg/thread"
)

// Handler bundles the core components the HTTP layer dispatches into.
type Handler struct {
	Sync    *syncer.Synchronizer
	Dir     *directory.Directory
	Index   *convindex.Index
	Threads *thread.Store
	Assets  *assets.Store
}

// NewRouter mounts all routes. The gate (API key + rate limit) guards
// everything under /v1; health and metrics stay open for probes.
func NewRouter(h *Handler, gate *auth.Gate) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(instrument)
	if gate != nil {
		v1.Use(gate.Middleware)
	}

	// users
	v1.HandleFunc("/users", h.registerUser).Methods(http.MethodPost)
	v1.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users/search", h.searchUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users/{email}/avatar", h.uploadAvatar).Methods(http.MethodPost)
	v1.HandleFunc("/users/{email}/avatar", h.resolveAvatar).Methods(http.MethodGet)

	// conversations
	v1.HandleFunc("/conversations", h.createConversation).Methods(http.MethodPost)
	v1.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}", h.deleteConversation).Methods(http.MethodDelete)
	v1.HandleFunc("/conversations/{id}/messages", h.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/messages", h.listMessages).Methods(http.MethodGet)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
