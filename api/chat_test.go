package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azamon/support-chat/internal/chat"
	"github.com/azamon/support-chat/internal/llm"
	"github.com/azamon/support-chat/internal/log"
)

// stubSender returns a fixed result or error and records its input.
type stubSender struct {
	result    chat.SendResult
	err       error
	gotID     string
	gotMsg    string
	callCount int
}

func (s *stubSender) SendMessage(_ context.Context, sessionID, message string) (chat.SendResult, error) {
	s.callCount++
	s.gotID = sessionID
	s.gotMsg = message
	if s.err != nil {
		return chat.SendResult{}, s.err
	}
	return s.result, nil
}

func newChatMux(sender MessageSender, exposeDetails bool) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(sender, log.NewNop(), exposeDetails).RegisterRoutes(mux)
	return mux
}

func postMessage(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestChatHandler_SendMessage(t *testing.T) {
	sessionID := uuid.New()
	sender := &stubSender{result: chat.SendResult{
		Reply:     "Sure, returns take 30 days.",
		SessionID: sessionID,
	}}
	mux := newChatMux(sender, false)

	w := postMessage(t, mux, `{"message": "Can I return this?", "sessionId": "`+sessionID.String()+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SendMessageResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Sure, returns take 30 days.", resp.Reply)
	assert.Equal(t, sessionID.String(), resp.SessionID)

	assert.Equal(t, "Can I return this?", sender.gotMsg)
	assert.Equal(t, sessionID.String(), sender.gotID)
}

func TestChatHandler_InvalidBody(t *testing.T) {
	sender := &stubSender{}
	mux := newChatMux(sender, false)

	w := postMessage(t, mux, `{not json`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, sender.callCount, "sender should not be called for a bad body")

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Message is required and must be a string", resp.Error)
}

func TestChatHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"empty message", chat.ErrEmptyMessage, http.StatusBadRequest,
			"Message cannot be empty"},
		{"too long", chat.ErrMessageTooLong, http.StatusBadRequest,
			"Message is too long (max 2000 characters)"},
		{"configuration", llm.ErrConfiguration, http.StatusInternalServerError,
			"Configuration error. Please contact support."},
		{"rate limited", llm.ErrRateLimited, http.StatusTooManyRequests,
			"Too many requests. Please try again in a moment."},
		{"timeout", llm.ErrTimeout, http.StatusGatewayTimeout,
			"Request timeout. Please try again."},
		{"unclassified", context.Canceled, http.StatusInternalServerError,
			"Failed to process message. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newChatMux(&stubSender{err: tt.err}, false)

			w := postMessage(t, mux, `{"message": "hello"}`)

			require.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Empty(t, resp.Details, "details must be hidden by default")
		})
	}
}

func TestChatHandler_DetailsExposedOutsideProduction(t *testing.T) {
	mux := newChatMux(&stubSender{err: llm.ErrTimeout}, true)

	w := postMessage(t, mux, `{"message": "hello"}`)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Details)
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	mux := newChatMux(&stubSender{}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/message", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
