package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("GET /ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Scripts
	mux.HandleFunc("POST /api/scripts/generate", s.app.ScriptHandler.GenerateHandler)
	mux.HandleFunc("POST /api/scripts/estimate", s.app.ScriptHandler.EstimateHandler)
	mux.HandleFunc("GET /api/scripts", s.app.ScriptHandler.ListHandler)
	mux.HandleFunc("GET /api/scripts/{id}", s.app.ScriptHandler.GetHandler)

	// API routes - Credits
	mux.HandleFunc("GET /api/credits/{user}", s.app.CreditsHandler.GetHandler)
	mux.HandleFunc("POST /api/credits/{user}/grant", s.app.CreditsHandler.GrantHandler)

	// API routes - Generation runs
	mux.HandleFunc("GET /api/runs", s.app.RunsHandler.ListHandler)
	mux.HandleFunc("GET /api/runs/{id}", s.app.RunsHandler.GetHandler)

	// API routes - System
	mux.HandleFunc("GET /api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("GET /api/version", s.app.StatusHandler.VersionHandler)

	return mux
}
