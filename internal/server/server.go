// Package server provides the HTTP API for Ronbun.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/ronbun/internal/analysis"
	"github.com/hyperjump/ronbun/internal/config"
	"go.uber.org/zap"
)

// WatchService is the part of the directory watcher the API manages at
// runtime. It is nil when watching is disabled.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the Ronbun API.
type Server struct {
	engine     *analysis.Engine
	watch      WatchService
	cfg        *config.Config
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil
// when directory watching is disabled; configPath may be empty when watch
// directory changes should not be persisted.
func NewServer(
	engine *analysis.Engine,
	watch WatchService,
	cfg *config.Config,
	configPath string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:     engine,
		watch:      watch,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Router assembles the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/papers", s.handleUploadPaper)
		r.Post("/papers/batch", s.handleUploadBatch)
		r.Get("/papers", s.handleListPapers)
		r.Get("/papers/{id}", s.handleGetPaper)
		r.Delete("/papers/{id}", s.handleDeletePaper)
		r.Get("/papers/{id}/summary", s.handleSummarize)
		r.Post("/papers/{id}/ask", s.handleAsk)
		r.Get("/papers/{id}/quality", s.handleQuality)
		r.Post("/compare", s.handleCompare)
		r.Get("/report", s.handleReport)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleListWatchDirectories)
		r.Post("/watch/directories", s.handleAddWatchDirectory)
		r.Delete("/watch/directories", s.handleRemoveWatchDirectory)
	})
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
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
