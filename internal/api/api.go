// Package api exposes the HTTP surface of the bot. Channel webhook bridges
// post inbound messages to /v1/events; the conversation-started endpoint
// covers channel "get started" hooks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/irislabs/iris/internal/models"
)

// Dialog is the slice of the dialog manager the API uses.
type Dialog interface {
	HandleEvent(ctx context.Context, ch models.Channel, recipientID, text, localeHint string) (models.Intent, error)
	HandleConversationStarted(ctx context.Context, ch models.Channel, recipientID, localeHint string) error
}

// Server handles the HTTP endpoints.
type Server struct {
	dialog Dialog
	mux    *http.ServeMux
}

// NewServer creates the API server over a dialog manager.
func NewServer(dialog Dialog) *Server {
	s := &Server{dialog: dialog, mux: http.NewServeMux()}
	s.mux.HandleFunc("/v1/events", s.handleEvent)
	s.mux.HandleFunc("/v1/events/conversation-started", s.handleConversationStarted)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// eventRequest is an inbound message posted by a channel webhook bridge.
type eventRequest struct {
	Channel     models.Channel `json:"channel"`
	RecipientID string         `json:"recipient_id"`
	Message     string         `json:"message"`
	Locale      string         `json:"locale,omitempty"`
}

type eventResult struct {
	Intent models.Intent `json:"intent,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, failure("method not allowed"))
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, failure("invalid JSON body"))
		return
	}
	if req.RecipientID == "" || req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, failure("recipient_id and message are required"))
		return
	}

	start := time.Now()
	intent, err := s.dialog.HandleEvent(r.Context(), req.Channel, req.RecipientID, req.Message, req.Locale)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrUnknownChannel) || errors.Is(err, models.ErrNoAdapter) {
			status = http.StatusBadRequest
		}
		slog.Error("Event handling failed", "error", err, "channel", req.Channel)
		writeJSONResponse(w, status, failure(err.Error()))
		return
	}
	slog.Debug("Event handled", "channel", req.Channel, "intent", intent, "duration", time.Since(start))
	writeJSONResponse(w, http.StatusOK, success(eventResult{Intent: intent}))
}

// conversationStartedRequest is a channel "get started" notification.
type conversationStartedRequest struct {
	Channel     models.Channel `json:"channel"`
	RecipientID string         `json:"recipient_id"`
	Locale      string         `json:"locale,omitempty"`
}

func (s *Server) handleConversationStarted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, failure("method not allowed"))
		return
	}
	var req conversationStartedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, failure("invalid JSON body"))
		return
	}
	if req.RecipientID == "" {
		writeJSONResponse(w, http.StatusBadRequest, failure("recipient_id is required"))
		return
	}

	if err := s.dialog.HandleConversationStarted(r.Context(), req.Channel, req.RecipientID, req.Locale); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrUnknownChannel) || errors.Is(err, models.ErrNoAdapter) {
			status = http.StatusBadRequest
		}
		slog.Error("Conversation-started handling failed", "error", err, "channel", req.Channel)
		writeJSONResponse(w, status, failure(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, success(nil))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, success(map[string]string{"status": "healthy"}))
}
