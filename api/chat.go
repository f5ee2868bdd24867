package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/azamon/support-chat/internal/chat"
	"github.com/azamon/support-chat/internal/llm"
	"github.com/azamon/support-chat/internal/log"
)

// MessageSender runs one chat exchange. Implemented by chat.Service.
type MessageSender interface {
	SendMessage(ctx context.Context, sessionID, message string) (chat.SendResult, error)
}

// ChatHandler handles the message endpoint.
type ChatHandler struct {
	sender        MessageSender
	logger        log.Logger
	exposeDetails bool
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(sender MessageSender, logger log.Logger, exposeDetails bool) *ChatHandler {
	return &ChatHandler{sender: sender, logger: logger, exposeDetails: exposeDetails}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/message", h.sendMessage)
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// SendMessageResponse is the successful response body.
type SendMessageResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

func (h *ChatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required and must be a string", "")
		return
	}

	result, err := h.sender.SendMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		Reply:     result.Reply,
		SessionID: result.SessionID.String(),
	})
}

// writeSendError maps service errors to client responses. Validation errors
// keep their distinct messages; everything unclassified collapses into a
// generic 500 so internals never leak to customers.
func (h *ChatHandler) writeSendError(w http.ResponseWriter, err error) {
	var details string
	if h.exposeDetails {
		details = err.Error()
	}

	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message cannot be empty", "")
	case errors.Is(err, chat.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "Message is too long (max 2000 characters)", "")
	case errors.Is(err, llm.ErrConfiguration):
		h.logger.Error("message rejected: provider configuration", "error", err)
		writeError(w, http.StatusInternalServerError, "Configuration error. Please contact support.", details)
	case errors.Is(err, llm.ErrRateLimited):
		h.logger.Warn("message rejected: rate limited", "error", err)
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again in a moment.", details)
	case errors.Is(err, llm.ErrTimeout):
		h.logger.Warn("message rejected: generation timeout", "error", err)
		writeError(w, http.StatusGatewayTimeout, "Request timeout. Please try again.", details)
	default:
		h.logger.Error("failed to process message", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process message. Please try again.", details)
	}
}
