// Package web exposes the HTTP surface: session creation, the chat
// endpoints, health, metrics and the static frontend.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vizlab-ai/vizchat/internal/chat"
	"github.com/vizlab-ai/vizchat/internal/observability"
	"github.com/vizlab-ai/vizchat/internal/sessions"
	"github.com/vizlab-ai/vizchat/pkg/models"
)

// agentNotInitialized mirrors the startup failure mode where the server came
// up but the agent could not be constructed.
const agentNotInitialized = "Agent not initialized. Please restart the server."

// Server holds the request handlers and their dependencies. It is built once
// at startup and passed to every handler; there is no package-level state.
type Server struct {
	coordinator *chat.Coordinator
	store       sessions.Store
	staticDir   string
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewServer creates the HTTP server context. A nil coordinator is allowed:
// the server still serves sessions, health and static files, and the chat
// endpoints answer 500 until a working agent is configured.
func NewServer(coordinator *chat.Coordinator, store sessions.Store, staticDir string, logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		coordinator: coordinator,
		store:       store,
		staticDir:   staticDir,
		logger:      logger,
		metrics:     metrics,
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/session", s.handleSession)
	r.Post("/chat", s.handleChat)
	r.Post("/chat/stream", s.handleChatStream)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, filepath.Join(s.staticDir, "index.html"))
		})
	}

	return r
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type sessionResponse struct {
	ThreadID string `json:"thread_id"`
}

// handleSession creates a fresh session and returns its thread id.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := "chat_session_" + uuid.NewString()
	session := &models.Session{ID: id}
	if err := s.store.Create(r.Context(), session); err != nil {
		s.error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	if s.metrics != nil {
		s.metrics.SessionRegistered()
	}
	if s.logger != nil {
		s.logger.Info(r.Context(), "session created", "thread_id", id)
	}
	s.json(w, http.StatusOK, sessionResponse{ThreadID: id})
}

// handleChat runs a turn to completion and returns just the final text.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	response, err := s.coordinator.Collect(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(r.Context(), "chat turn failed", "thread_id", req.ThreadID, "error", err.Error())
		}
		s.error(w, http.StatusInternalServerError, "Error processing chat: "+err.Error())
		return
	}
	s.json(w, http.StatusOK, chatResponse{Response: response})
}

// handleChatStream runs a turn and relays each event as an SSE data line.
// When the client disconnects the request context cancels and the turn is
// abandoned; in-flight tool calls are not aborted.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := s.coordinator.StreamTurn(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(r.Context(), "stream start failed", "thread_id", req.ThreadID, "error", err.Error())
		}
		s.error(w, http.StatusInternalServerError, "Error processing chat: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeChatRequest parses the shared chat request body and checks the
// endpoint preconditions. It writes the error response itself and reports
// whether the handler should proceed.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Message == "" || req.ThreadID == "" {
		s.error(w, http.StatusBadRequest, "message and thread_id are required")
		return req, false
	}
	if _, err := s.store.Get(r.Context(), req.ThreadID); err != nil {
		s.error(w, http.StatusBadRequest, "Unknown thread_id")
		return req, false
	}
	if s.coordinator == nil {
		s.error(w, http.StatusInternalServerError, agentNotInitialized)
		return req, false
	}
	return req, true
}

func (s *Server) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func (s *Server) error(w http.ResponseWriter, status int, message string) {
	s.json(w, status, map[string]string{"error": message})
}
