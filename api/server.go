// Package api provides the HTTP REST API for the support-chat backend.
//
// Endpoints:
//
//	POST   /api/chat/message            → send a message, get the agent reply
//	GET    /api/chat/history/{sessionId} → full message history of a session
//	GET    /api/chat/sessions           → session summaries for list views
//	DELETE /api/chat/session/{sessionId} → delete a session and its messages
//	GET    /health                      → liveness probe
//	GET    /ready                       → readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: Health check endpoints (/health, /ready)
//   - chat.go: Message endpoint
//   - session.go: History, list, and delete endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azamon/support-chat/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = ":3000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed the generation timeout or slow model calls get cut off mid-reply.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the support-chat REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	chat    *ChatHandler
	session *SessionHandler
}

// Options tunes server behavior beyond the wiring.
type Options struct {
	// ExposeDetails includes error detail strings in error responses.
	// Off in production.
	ExposeDetails bool
}

// NewServer creates an HTTP server with all routes registered.
// pool is used only by the readiness probe and may be nil in tests.
func NewServer(sender MessageSender, store SessionStore, pool *pgxpool.Pool, logger log.Logger, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(pool, logger),
		chat:    NewChatHandler(sender, logger, opts.ExposeDetails),
		session: NewSessionHandler(store, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
