// Package server provides the HTTP API for kanoon.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/extract"
	"github.com/hyperjump/kanoon/internal/indexer"
	"github.com/hyperjump/kanoon/internal/orchestrator"
	"github.com/hyperjump/kanoon/internal/search"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// Server is the HTTP server for the kanoon API.
type Server struct {
	orch      *orchestrator.Orchestrator
	indexer   *indexer.Indexer
	library   *search.Engine
	extractor *extract.Extractor
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orch *orchestrator.Orchestrator,
	idx *indexer.Indexer,
	library *search.Engine,
	extractor *extract.Extractor,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	s := &Server{
		orch:      orch,
		indexer:   idx,
		library:   library,
		extractor: extractor,
		config:    cfg,
		logger:    utils.OrNop(logger),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)
			r.Post("/chat", s.handleChat)
			r.Post("/notice", s.handleNotice)
			r.Post("/roadmap", s.handleRoadmap)
			r.Post("/ask", s.handleAsk)
			r.Post("/translate", s.handleTranslate)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/documents", s.handleIndexDocument)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
			r.Get("/library/search", s.handleLibrarySearch)
		})
	})

	// Paths served by the first release of the assistant API.
	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Post("/chat/", s.handleChat)
		r.Post("/generate_notice/", s.handleNotice)
		r.Post("/roadmap/", s.handleRoadmap)
		r.Post("/translate/", s.handleTranslate)
		r.Post("/analyze_document/", s.handleAnalyze)
	})

	r.Get("/health", s.handleHealth)
	return r
}

// requireReady answers 503 until backends are loaded and the corpus is restored.
func (s *Server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.orch.Ready() {
			w.Header().Set("Retry-After", "5")
			s.respondError(w, http.StatusServiceUnavailable, "service is starting")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through zap once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server and blocks until it stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
