package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQL statements for the conversations and messages tables.
//
// Ordering is by created_at with the store-generated seq column breaking
// ties, so messages written in the same instant keep insertion order.
const (
	createConversationSQL = `INSERT INTO conversations DEFAULT VALUES
	RETURNING id, created_at`

	getConversationSQL = `SELECT id, created_at FROM conversations WHERE id = $1`

	listConversationsSQL = `SELECT id, created_at FROM conversations
	ORDER BY created_at DESC`

	deleteConversationSQL = `DELETE FROM conversations WHERE id = $1`

	insertMessageSQL = `INSERT INTO messages (conversation_id, sender, text)
	VALUES ($1, $2, $3)`

	listMessagesSQL = `SELECT id, conversation_id, sender, text, created_at
	FROM messages WHERE conversation_id = $1
	ORDER BY created_at, seq`

	listRecentMessagesSQL = `SELECT id, conversation_id, sender, text, created_at
	FROM messages WHERE conversation_id = $1
	ORDER BY created_at DESC, seq DESC
	LIMIT $2`
)

// PGQuerier implements Querier on top of a pgx connection pool.
//
// Error mapping happens here, at the driver-aware layer: missing rows and
// foreign-key violations become ErrConversationNotFound, every other driver
// failure wraps ErrStoreUnavailable.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier backed by pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

// CreateConversation inserts a conversation row; the database generates the
// id and creation timestamp.
func (q *PGQuerier) CreateConversation(ctx context.Context) (Conversation, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	if err := q.pool.QueryRow(ctx, createConversationSQL).Scan(&id, &createdAt); err != nil {
		return Conversation{}, mapPGError(err)
	}
	return Conversation{ID: pgUUIDToUUID(id), CreatedAt: createdAt.Time}, nil
}

// GetConversation fetches a conversation by id.
func (q *PGQuerier) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var (
		convID    pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	err := q.pool.QueryRow(ctx, getConversationSQL, uuidToPgUUID(id)).Scan(&convID, &createdAt)
	if err != nil {
		return Conversation{}, mapPGError(err)
	}
	return Conversation{ID: pgUUIDToUUID(convID), CreatedAt: createdAt.Time}, nil
}

// ListConversations returns all conversations, newest-created first.
func (q *PGQuerier) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := q.pool.Query(ctx, listConversationsSQL)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, mapPGError(err)
		}
		conversations = append(conversations, Conversation{
			ID:        pgUUIDToUUID(id),
			CreatedAt: createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapPGError(err)
	}
	return conversations, nil
}

// DeleteConversation deletes a conversation row; messages cascade via the
// foreign key. Deleting an absent row is a no-op.
func (q *PGQuerier) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if _, err := q.pool.Exec(ctx, deleteConversationSQL, uuidToPgUUID(id)); err != nil {
		return mapPGError(err)
	}
	return nil
}

// InsertMessage inserts one message row.
func (q *PGQuerier) InsertMessage(ctx context.Context, conversationID uuid.UUID, sender Sender, text string) error {
	_, err := q.pool.Exec(ctx, insertMessageSQL, uuidToPgUUID(conversationID), string(sender), text)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

// ListMessages returns a conversation's messages in ascending order.
func (q *PGQuerier) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	return q.queryMessages(ctx, listMessagesSQL, uuidToPgUUID(conversationID))
}

// ListRecentMessages returns the newest limit messages, newest first.
func (q *PGQuerier) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Message, error) {
	return q.queryMessages(ctx, listRecentMessagesSQL, uuidToPgUUID(conversationID), limit)
}

func (q *PGQuerier) queryMessages(ctx context.Context, sql string, args ...any) ([]Message, error) {
	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			convID    pgtype.UUID
			sender    string
			text      string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &convID, &sender, &text, &createdAt); err != nil {
			return nil, mapPGError(err)
		}
		messages = append(messages, Message{
			ID:             pgUUIDToUUID(id),
			ConversationID: pgUUIDToUUID(convID),
			Sender:         Sender(sender),
			Text:           text,
			CreatedAt:      createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapPGError(err)
	}
	return messages, nil
}

// mapPGError translates driver errors into the package's sentinel errors.
func mapPGError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConversationNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return ErrConversationNotFound
	}

	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// uuidToPgUUID converts uuid.UUID to pgtype.UUID.
func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
