// Package conversation provides persistence for support-chat conversations
// and their message history.
//
// Responsibilities: conversation identity, append-only message storage,
// chronological ordering, context-window reads, and list-view summaries.
// The Store owns all reads and writes; no other component touches the
// underlying tables.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

// Valid sender values.
const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Limits and fallbacks for stored messages and derived summaries.
const (
	// DefaultMaxMessageLength bounds stored message text, in runes.
	// Longer text is truncated on write, never rejected.
	DefaultMaxMessageLength = 10000

	// DefaultRecentLimit is the number of messages returned by
	// RecentHistory when the caller passes a non-positive limit.
	DefaultRecentLimit = 10

	// TitleMaxLength and PreviewMaxLength bound summary fields, in runes.
	TitleMaxLength   = 40
	PreviewMaxLength = 60

	// TitlePlaceholder is the summary title for conversations without a
	// user-authored message. PreviewPlaceholder is the summary preview for
	// conversations without any message.
	TitlePlaceholder   = "New Chat"
	PreviewPlaceholder = "No messages yet"
)

// Conversation is a persisted chat thread. Immutable after creation except
// for deletion, which cascades to its messages.
type Conversation struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Message is one stored turn of a conversation. Messages are immutable;
// ordering within a conversation is by creation time, ties resolved by the
// store's insertion order.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Sender         Sender
	Text           string
	CreatedAt      time.Time
}

// Summary is a derived, non-persisted projection of a conversation used for
// list views.
type Summary struct {
	ID           uuid.UUID
	Title        string
	Preview      string
	Timestamp    time.Time
	MessageCount int
}

// NormalizeSender maps a raw stored sender value to a Sender. The mapping is
// total: any case variant of "user" is SenderUser, every other value
// (including empty or malformed) is SenderAI. The fallback to SenderAI is
// preserved for compatibility with existing stored data.
func NormalizeSender(raw string) Sender {
	if strings.EqualFold(raw, string(SenderUser)) {
		return SenderUser
	}
	return SenderAI
}

// truncateRunes returns s cut to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ellipsize returns s cut to at most n runes, with "..." appended when
// anything was cut.
func ellipsize(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
