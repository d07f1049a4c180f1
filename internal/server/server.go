// Package server provides the HTTP API for DocVault.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/ingest"
	"github.com/mizushina/docvault/internal/rag"
	"github.com/mizushina/docvault/internal/session"
	"github.com/mizushina/docvault/internal/store"
)

// ImageIndexer indexes descriptions of a PDF's image-heavy pages.
type ImageIndexer interface {
	ProcessPDF(ctx context.Context, sessionID, filename, path string) int
}

// Server is the HTTP server for the DocVault API.
type Server struct {
	ingest   *ingest.Pipeline
	rag      *rag.Pipeline
	images   ImageIndexer
	sessions *session.Manager
	store    store.VectorStore
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. images may be nil
// when PDF image processing is disabled.
func NewServer(
	ing *ingest.Pipeline,
	answers *rag.Pipeline,
	images ImageIndexer,
	sessions *session.Manager,
	st store.VectorStore,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest:   ing,
		rag:      answers,
		images:   images,
		sessions: sessions,
		store:    st,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the API routes. Exposed so tests can drive handlers directly.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/documents", s.handleUpload)
			r.Post("/search", s.handleSearch)
			r.Get("/files", s.handleListFiles)
			r.Delete("/", s.handleDeleteSession)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", s.handleSweep)
			r.Delete("/storage", s.handleResetStorage)
		})
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
