package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MimeLyc/srs-generator/internal/export"
	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/internal/pipeline"
	"github.com/MimeLyc/srs-generator/internal/storage"
)

type Server struct {
	orchestrator *pipeline.Orchestrator
	layout       *storage.Layout
	store        jobs.Store
	exporter     *export.Service
	schemas      *schemas

	mux    *http.ServeMux
	mu     sync.Mutex
	server *http.Server
}

type Option func(*Server)

// WithStore enables the job history routes. Without a store they answer 501.
func WithStore(store jobs.Store) Option {
	return func(s *Server) {
		if store == nil {
			return
		}
		s.store = store
		s.exporter = export.NewService(store)
	}
}

func NewServer(orchestrator *pipeline.Orchestrator, layout *storage.Layout, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		layout:       layout,
		schemas:      mustCompileSchemas(),
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	// no WriteTimeout: generation streams stay open for the whole model call
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHealth)

	s.mux.HandleFunc("POST /generate-srs", s.handleGenerateSRS)
	s.mux.HandleFunc("POST /generate-pdf", s.handleGenerateDocuments)
	s.mux.HandleFunc("POST /generate-srs-stream", s.handleGenerateStream)

	s.mux.HandleFunc("GET /download-pdf/{owner}/{filename}", s.handleDownload(storage.KindPDF))
	s.mux.HandleFunc("GET /download-word/{owner}/{filename}", s.handleDownload(storage.KindWord))

	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/latest", s.handleLatestJob)
	s.mux.HandleFunc("GET /api/jobs/export", s.handleExportJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/review", s.handleReviewJob)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server up and running"})
}
