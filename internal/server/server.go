package server

import (
	"log/slog"
	"net/http"

	"finboard/internal/config"
	"finboard/internal/handlers"
	"finboard/internal/services"
)

type Server struct {
	reports     *services.Reports
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(reports *services.Reports, logger *slog.Logger, cfg config.DataConfig, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		reports:     reports,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(reports, logger, cfg.UploadMaxBytes),
		sseHandlers: handlers.NewSSEHandlers(reports, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard page
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/upload", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/report", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)

	// Datastar SSE endpoints, one hit per filter interaction
	s.mux.HandleFunc("GET /sse/report", s.sseHandlers.HandleReport)
	s.mux.HandleFunc("GET /sse/options", s.sseHandlers.HandleOptions)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
