// Package admin provides a lightweight, read-only HTTP API for runtime
// inspection of a running crypto store.
//
// Endpoints:
//
//	GET /status   - lock state, tracked-user count, session/backup counts
//	GET /metrics  - full metrics snapshot
//
// Unlike the teacher's management API this surface never mutates store
// state and never exposes key material; it reports shape and counts only.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"matrix-cryptostore/internal/config"
	"matrix-cryptostore/internal/cryptostore"
	"matrix-cryptostore/internal/metrics"
)

// Server is the admin API server.
type Server struct {
	cfg       *config.Config
	store     *cryptostore.Store
	startTime time.Time
	token     string // bearer token for auth; empty = no auth
}

// New creates an admin server bound to store.
func New(cfg *config.Config, store *cryptostore.Store) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		startTime: time.Now(),
		token:     cfg.AdminToken,
	}
	if s.token != "" {
		log.Printf("[ADMIN] Bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			log.Printf("[ADMIN] Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	Status            string `json:"status"`
	Uptime            string `json:"uptime"`
	Locked            bool   `json:"locked"`
	TrackedUsers      int    `json:"trackedUsers"`
	UsersForKeyQuery  int    `json:"usersForKeyQuery"`
	InboundSessions   int    `json:"inboundGroupSessions"`
	BackedUpSessions  int    `json:"backedUpGroupSessions"`
	UnsentKeyRequests int    `json:"unsentKeyRequests"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status: "running",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		Locked: s.store.IsLocked(),
	}

	if !resp.Locked {
		resp.TrackedUsers = len(s.store.TrackedUsers())
		resp.UsersForKeyQuery = len(s.store.UsersForKeyQuery())

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if counts, err := s.store.InboundGroupSessionCounts(ctx); err == nil {
			resp.InboundSessions = counts.Total
			resp.BackedUpSessions = counts.BackedUp
		}
		if unsent, err := s.store.UnsentGossipRequests(ctx); err == nil {
			resp.UnsentKeyRequests = len(unsent)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var m *metrics.Metrics
	if s.store != nil {
		m = s.store.Metrics()
	}
	if m == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ADMIN] JSON encode error: %v", err)
	}
}

// ListenAndServe starts the admin HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.AdminPort)
	log.Printf("[ADMIN] Listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
