package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/azamon/support-chat/internal/conversation"
	"github.com/azamon/support-chat/internal/log"
)

// SessionStore is the persistence surface the session endpoints depend on.
// Implemented by conversation.Store.
type SessionStore interface {
	History(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	Summaries(ctx context.Context) ([]conversation.Summary, error)
	Delete(ctx context.Context, conversationID uuid.UUID) error
}

// SessionHandler handles session-related HTTP endpoints.
type SessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store SessionStore, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chat/history/{sessionId}", h.history)
	mux.HandleFunc("GET /api/chat/sessions", h.list)
	mux.HandleFunc("DELETE /api/chat/session/{sessionId}", h.delete)
}

// MessageResponse is one message in a history response.
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SessionResponse is one session summary in a list response.
type SessionResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
}

// history returns a session's full message history as a JSON array.
// Unknown and malformed session ids both yield an empty array, matching the
// send endpoint's forgiving treatment of session ids.
func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("sessionId"))
	if err != nil {
		writeJSON(w, http.StatusOK, []MessageResponse{})
		return
	}

	messages, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve conversation history", "")
		return
	}

	resp := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, MessageResponse{
			ID:             msg.ID.String(),
			ConversationID: msg.ConversationID.String(),
			Sender:         string(msg.Sender),
			Text:           msg.Text,
			CreatedAt:      msg.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// list returns summaries of all sessions, most recently active first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Summaries(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sessions", "")
		return
	}

	resp := make([]SessionResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, SessionResponse{
			ID:           s.ID.String(),
			Title:        s.Title,
			Preview:      s.Preview,
			Timestamp:    s.Timestamp,
			MessageCount: s.MessageCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete removes a session and its messages. Idempotent: unknown and
// malformed ids succeed with the same response as a real deletion.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("sessionId"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete session", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}
