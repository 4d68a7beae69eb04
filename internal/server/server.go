// Package server exposes the research backend over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"crafty/internal/chat"
	"crafty/internal/config"
	"crafty/internal/gateway"
)

type Server struct {
	gw      *gateway.Gateway
	service *chat.Service
	rt      *gateway.Runtime
	mu      sync.Mutex
	port    int
}

func NewServer(gw *gateway.Gateway, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{gw: gw, port: port}
}

// Start initializes the service and serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	service, rt, err := s.gw.InitService()
	if err != nil {
		return fmt.Errorf("init service for api: %w", err)
	}
	s.service = service
	s.rt = rt

	mux := http.NewServeMux()
	mux.HandleFunc("/api/research", s.handleResearch)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/block", s.handleBlock)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/status", s.handleStatus)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Println("[API] Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[API] Listening on http://localhost:%d", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

type researchRequest struct {
	Message string `json:"message"`
}

type researchResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// One shared conversation for now; serialize turns.
	s.mu.Lock()
	defer s.mu.Unlock()

	turnCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	reply, err := s.service.Send(turnCtx, req.Message)
	resp := researchResponse{Reply: reply}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, resp)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turnCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	results := s.rt.Search.Run(turnCtx, req.Query, s.rt.Block.ID)
	writeJSON(w, results)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	block, ok := s.rt.Sessions.GetBlock(s.rt.Block.ID)
	if !ok {
		http.Error(w, "Block not found", http.StatusNotFound)
		return
	}
	writeJSON(w, block)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	configPath := s.gw.ConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	switch r.Method {
	case http.MethodGet:
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			cfg = config.Default()
		}
		writeJSON(w, cfg)
	case http.MethodPost:
		var cfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := cfg.Save(configPath); err != nil {
			http.Error(w, "Failed to save config", http.StatusInternalServerError)
			return
		}
		s.gw.LoadConfig()
		writeJSON(w, map[string]string{"status": "success"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status": "online",
		"model":  s.rt.Config.Model,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
