package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// Querier defines the database operations the Store depends on.
// Following Go best practices: the interface is defined by the consumer,
// not the provider, so tests can substitute a mock and production wires in
// the pgx-backed implementation from postgres.go.
type Querier interface {
	CreateConversation(ctx context.Context) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	InsertMessage(ctx context.Context, conversationID uuid.UUID, sender Sender, text string) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Message, error)
}

// Store manages conversation persistence. It is the only component allowed
// to mutate conversation and message state.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier       Querier
	maxMessageLen int
	logger        *slog.Logger
}

// New creates a Store.
//
// maxMessageLen bounds stored message text in runes; values <= 0 fall back
// to DefaultMaxMessageLength. A nil logger falls back to slog.Default().
func New(querier Querier, maxMessageLen int, logger *slog.Logger) *Store {
	if maxMessageLen <= 0 {
		maxMessageLen = DefaultMaxMessageLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		querier:       querier,
		maxMessageLen: maxMessageLen,
		logger:        logger,
	}
}

// CreateConversation creates a new conversation and returns its id.
func (s *Store) CreateConversation(ctx context.Context) (uuid.UUID, error) {
	conv, err := s.querier.CreateConversation(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID)
	return conv.ID, nil
}

// Exists reports whether the conversation exists. Unknown ids are not an
// error; callers use this to validate client-supplied session identifiers.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.querier.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking conversation %s: %w", id, err)
	}
	return true, nil
}

// AppendMessage inserts one immutable message row. Text longer than the
// configured maximum is truncated before storage, not rejected. Returns
// ErrConversationNotFound if the conversation does not exist.
func (s *Store) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender Sender, text string) error {
	sender = NormalizeSender(string(sender))
	text = truncateRunes(text, s.maxMessageLen)

	if err := s.querier.InsertMessage(ctx, conversationID, sender, text); err != nil {
		return fmt.Errorf("appending message to %s: %w", conversationID, err)
	}

	s.logger.Debug("appended message",
		"conversation_id", conversationID,
		"sender", sender,
		"text_len", len(text))
	return nil
}

// History returns the full message history of a conversation in ascending
// creation-time order. An unknown or empty conversation yields an empty
// slice, not an error.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	messages, err := s.querier.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", conversationID, err)
	}
	return normalizeSenders(messages), nil
}

// RecentHistory returns at most limit of the newest messages, restored to
// ascending creation-time order. It is always a time-suffix of History.
// A non-positive limit falls back to DefaultRecentLimit.
func (s *Store) RecentHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	// The querier returns the tail newest-first; reverse to chronological.
	messages, err := s.querier.ListRecentMessages(ctx, conversationID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("loading recent history for %s: %w", conversationID, err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return normalizeSenders(messages), nil
}

// Summaries returns one Summary per conversation, ordered by derived
// timestamp descending (most recently active first).
//
// The title comes from the first user-authored message — not simply the
// first message, since an AI turn can precede the user's — and the preview
// from the most recent message of either sender. Conversations without the
// relevant message fall back to placeholders.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	conversations, err := s.querier.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(conversations))
	for _, conv := range conversations {
		messages, err := s.querier.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("loading messages for %s: %w", conv.ID, err)
		}
		summaries = append(summaries, buildSummary(conv, normalizeSenders(messages)))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})

	s.logger.Debug("built session summaries", "count", len(summaries))
	return summaries, nil
}

// Delete removes a conversation; the store cascades deletion of its
// messages. Idempotent: deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.querier.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", conversationID, err)
	}

	s.logger.Debug("deleted conversation", "id", conversationID)
	return nil
}

// buildSummary derives the list-view projection for one conversation from
// its chronologically ordered messages.
func buildSummary(conv Conversation, messages []Message) Summary {
	summary := Summary{
		ID:           conv.ID,
		Title:        TitlePlaceholder,
		Preview:      PreviewPlaceholder,
		Timestamp:    conv.CreatedAt,
		MessageCount: len(messages),
	}

	if len(messages) == 0 {
		return summary
	}

	for _, msg := range messages {
		if msg.Sender == SenderUser {
			summary.Title = ellipsize(msg.Text, TitleMaxLength)
			break
		}
	}

	last := messages[len(messages)-1]
	summary.Preview = ellipsize(last.Text, PreviewMaxLength)
	summary.Timestamp = last.CreatedAt

	return summary
}

// normalizeSenders applies the total sender mapping to messages read from
// the store, which may hold sender values in a different casing.
func normalizeSenders(messages []Message) []Message {
	for i := range messages {
		messages[i].Sender = NormalizeSender(string(messages[i].Sender))
	}
	return messages
}
