// Package api exposes the retrieval pipeline as a JSON HTTP API. Every
// response carries a stable signal code; error messages stay generic so
// backend internals never leak to clients.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ragforge/ragforge/internal/nlp"
	"github.com/ragforge/ragforge/internal/project"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Pipeline *nlp.Pipeline    // Required
	Projects project.Registry // Required

	// ChunkSize is the default chunk target for process requests that do
	// not set one.
	ChunkSize int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Projects == nil {
		return nil, errors.New("project registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dh := &dataHandler{
		pipeline:  cfg.Pipeline,
		projects:  cfg.Projects,
		chunkSize: cfg.ChunkSize,
		logger:    logger,
	}
	nh := &nlpHandler{
		pipeline: cfg.Pipeline,
		projects: cfg.Projects,
		logger:   logger,
	}
	ph := &projectHandler{
		projects: cfg.Projects,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", ph.list)

	mux.HandleFunc("POST /api/v1/data/process/{project_id}", dh.process)

	mux.HandleFunc("POST /api/v1/nlp/index/push/{project_id}", nh.indexPush)
	mux.HandleFunc("GET /api/v1/nlp/index/info/{project_id}", nh.indexInfo)
	mux.HandleFunc("POST /api/v1/nlp/index/search/{project_id}", nh.search)
	mux.HandleFunc("POST /api/v1/nlp/index/answer/{project_id}", nh.answer)

	// Middleware stack, outermost first. RequestID precedes logging so the
	// id is available in log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
