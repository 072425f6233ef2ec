// Package server is the thin HTTP boundary over the pipeline: routing,
// bearer auth and CORS. All question-answering semantics live in
// internal/pipeline.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"docqa/internal/index"
	"docqa/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Port        int
	BearerToken string // empty disables auth (dev mode)
	AllowAll    bool   // allow all CORS origins (dev mode)
}

// Server exposes the pipeline over HTTP.
type Server struct {
	cfg        Config
	pipe       *pipeline.Pipeline
	idx        index.VectorIndex
	router     chi.Router
	httpServer *http.Server
}

// New creates a server around the given pipeline and index.
func New(cfg Config, pipe *pipeline.Pipeline, idx index.VectorIndex) *Server {
	s := &Server{
		cfg:  cfg,
		pipe: pipe,
		idx:  idx,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Liveness probe, no auth.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.BearerToken))
		r.Post("/query", s.handleQuery)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Delete("/documents", s.handleDeleteDocument)
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docqa server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// bearerAuth rejects requests whose Authorization header does not carry
// the configured token. An empty token disables the check.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authentication credentials"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
