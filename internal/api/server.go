// Package api exposes the relay's REST surface: health, conversation
// history, and profile management. The layer holds no business logic,
// only HTTP handling and JSON serialization.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gigrelay/internal/profile"
	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

// Registry is the slice of the connection registry the API needs.
type Registry interface {
	Stats() map[string]int
	CountForGig(gigID string) int
}

type Server struct {
	store    interfaces.MessageStore
	profiles *profile.Manager
	registry Registry
	router   *mux.Router
}

func NewServer(store interfaces.MessageStore, profiles *profile.Manager, registry Registry) *Server {
	s := &Server{
		store:    store,
		profiles: profiles,
		registry: registry,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware, s.jsonMiddleware)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/conversations/{gigId}/messages", s.conversationHistory).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/profiles/{userId}", s.getProfile).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/api/profiles/{userId}", s.upsertProfile).Methods(http.MethodPut, http.MethodOptions)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ConversationResponse struct {
	GigID       string                 `json:"gigId"`
	Messages    []*types.StoredMessage `json:"messages"`
	Connections int                    `json:"connections"`
}

type UpsertProfileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (s *Server) conversationHistory(w http.ResponseWriter, r *http.Request) {
	gigID := mux.Vars(r)["gigId"]
	if !types.IsValidStoreID(gigID) {
		s.sendError(w, "Invalid gig ID", http.StatusBadRequest)
		return
	}

	messages, err := s.store.ConversationHistory(r.Context(), gigID)
	if err != nil {
		s.sendError(w, "Failed to load conversation history", http.StatusInternalServerError)
		return
	}

	for _, m := range messages {
		if err := s.profiles.Enrich(r.Context(), m); err != nil {
			s.sendError(w, "Failed to load sender profiles", http.StatusInternalServerError)
			return
		}
	}

	if messages == nil {
		messages = []*types.StoredMessage{}
	}

	json.NewEncoder(w).Encode(ConversationResponse{
		GigID:       gigID,
		Messages:    messages,
		Connections: s.registry.CountForGig(gigID),
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !types.IsValidStoreID(userID) {
		s.sendError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	p, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrProfileNotFound) {
			s.sendError(w, "Profile not found", http.StatusNotFound)
			return
		}
		s.sendError(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(p)
}

func (s *Server) upsertProfile(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !types.IsValidStoreID(userID) {
		s.sendError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var req UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	p := &types.Profile{UserID: userID, Name: req.Name, Avatar: req.Avatar}
	if err := s.profiles.Upsert(r.Context(), p); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(p)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
