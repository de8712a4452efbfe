package server

import (
	"log/slog"
	"net/http"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/handlers"
	"basket-dashboard/internal/services"
)

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
}

func NewServer(analyzer *services.Analyzer, upload config.UploadConfig, logger *slog.Logger) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(analyzer, upload, logger),
		sseHandlers:  handlers.NewSSEHandlers(analyzer, upload, logger),
		pageHandlers: handlers.NewPageHandlers(analyzer, upload, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Pages
	s.mux.HandleFunc("GET /{$}", s.pageHandlers.HandleDashboard)
	s.mux.HandleFunc("POST /analyze", s.pageHandlers.HandleAnalyze)

	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API
	s.mux.HandleFunc("POST /api/analyze", s.apiHandlers.HandleAnalyze)

	// Datastar SSE
	s.mux.HandleFunc("POST /sse/analyze", s.sseHandlers.HandleAnalyze)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
