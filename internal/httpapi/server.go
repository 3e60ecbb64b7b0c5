// Package httpapi exposes the router's route operation over plain HTTP,
// for hosts that prefer a simple POST contract over MCP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsguard/errorpilot/internal/model"
	"github.com/opsguard/errorpilot/internal/router"
)

// Server is an unauthenticated localhost HTTP listener exposing POST
// /route and GET /status over the router.
type Server struct {
	router *router.Router
	mux    *http.ServeMux
	server *http.Server
}

// New builds a Server bound to addr (e.g. "127.0.0.1:8090").
func New(r *router.Router, addr string) *Server {
	s := &Server{router: r, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /route", s.handleRoute)
	s.mux.HandleFunc("GET /status", s.handleStatus)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut
// down.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var e model.ErrorReport
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result := s.router.Route(r.Context(), e)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.router.Status())
}
