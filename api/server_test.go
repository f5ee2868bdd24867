package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azamon/support-chat/internal/log"
)

func TestServerRoutes(t *testing.T) {
	srv := NewServer(&stubSender{}, &stubStore{}, nil, log.NewNop(), Options{})
	handler := srv.Handler()

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/chat/message", `{"message": "hi"}`, http.StatusOK},
		{http.MethodGet, "/api/chat/sessions", "", http.StatusOK},
		{http.MethodGet, "/api/chat/history/not-a-uuid", "", http.StatusOK},
		{http.MethodDelete, "/api/chat/session/not-a-uuid", "", http.StatusOK},
		{http.MethodGet, "/nonexistent", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
