// Package chat orchestrates one support-chat exchange: validate the
// customer's message, resolve the session, persist both turns, and obtain
// the agent's reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/azamon/support-chat/internal/conversation"
	"github.com/azamon/support-chat/internal/llm"
)

// DefaultMaxMessageRunes bounds an incoming customer message. Distinct from
// the storage-level truncation limit: messages over this bound are rejected,
// not trimmed.
const DefaultMaxMessageRunes = 2000

// Validation errors for incoming messages.
var (
	// ErrEmptyMessage indicates the message was empty after trimming.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrMessageTooLong indicates the message exceeded the allowed length.
	ErrMessageTooLong = errors.New("message too long")
)

// ConversationStore is the persistence surface the service depends on.
type ConversationStore interface {
	CreateConversation(ctx context.Context) (uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, sender conversation.Sender, text string) error
	History(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
}

// ReplyGenerator produces the agent's reply from conversation history.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []conversation.Message, userMessage string) (llm.Reply, error)
}

// SendResult is the outcome of one successful exchange.
type SendResult struct {
	Reply     string
	SessionID uuid.UUID
	Degraded  bool
}

// Service runs the send-message flow.
//
// Safe for concurrent use; concurrent sends into the same session interleave
// at message granularity.
type Service struct {
	store     ConversationStore
	generator ReplyGenerator
	maxRunes  int
	logger    *slog.Logger
}

// NewService creates a Service. maxRunes <= 0 falls back to
// DefaultMaxMessageRunes; a nil logger falls back to slog.Default().
func NewService(store ConversationStore, generator ReplyGenerator, maxRunes int, logger *slog.Logger) *Service {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxMessageRunes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		generator: generator,
		maxRunes:  maxRunes,
		logger:    logger,
	}
}

// SendMessage runs one exchange: validate, resolve the session, persist the
// customer's turn, generate the agent's reply, persist it, and return both
// the reply and the session id the exchange landed in.
//
// Session resolution is forgiving: an empty, malformed, or unknown
// sessionID transparently starts a fresh session rather than failing.
//
// If generation fails with a classified error the customer's turn is
// already persisted and stays; the error propagates with the resolved
// session id so the client can retry into the same session.
func (s *Service) SendMessage(ctx context.Context, sessionID, message string) (SendResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return SendResult{}, ErrEmptyMessage
	}
	if len([]rune(message)) > s.maxRunes {
		return SendResult{}, ErrMessageTooLong
	}

	id, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		return SendResult{}, err
	}

	if err := s.store.AppendMessage(ctx, id, conversation.SenderUser, message); err != nil {
		return SendResult{}, fmt.Errorf("persisting user message: %w", err)
	}

	// History now includes the message just appended; prompt assembly
	// receives it separately, so pass everything before it as context.
	history, err := s.store.History(ctx, id)
	if err != nil {
		return SendResult{}, fmt.Errorf("loading history: %w", err)
	}
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	reply, err := s.generator.GenerateReply(ctx, history, message)
	if err != nil {
		return SendResult{SessionID: id}, err
	}

	if err := s.store.AppendMessage(ctx, id, conversation.SenderAI, reply.Text); err != nil {
		return SendResult{}, fmt.Errorf("persisting reply: %w", err)
	}

	s.logger.Info("exchange completed",
		"session_id", id,
		"degraded", reply.Degraded,
		"reply_len", len(reply.Text))

	return SendResult{
		Reply:     reply.Text,
		SessionID: id,
		Degraded:  reply.Degraded,
	}, nil
}

// resolveSession maps a client-supplied session id to a live conversation,
// creating one when the id is empty, malformed, or unknown.
func (s *Service) resolveSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if sessionID != "" {
		id, err := uuid.Parse(sessionID)
		if err == nil {
			exists, err := s.store.Exists(ctx, id)
			if err != nil {
				return uuid.Nil, fmt.Errorf("resolving session: %w", err)
			}
			if exists {
				return id, nil
			}
		}
		s.logger.Debug("unknown or malformed session id, starting fresh", "session_id", sessionID)
	}

	id, err := s.store.CreateConversation(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}
