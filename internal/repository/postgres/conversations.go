package postgres

import (
	"context"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/repository"
)

const conversationColumns = `id, user_a, user_b, created_at, last_message_at`

func scanConversation(row interface{ Scan(...any) error }) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.UserA, &c.UserB, &c.CreatedAt, &c.LastMessageAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

// GetOrCreateConversation returns the canonical conversation row for an
// ordered pair, inserting it on first contact. Callers pass the pair already
// sorted lexically.
func (r *Repository) GetOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	const insert = `INSERT INTO conversations (id, user_a, user_b, created_at, last_message_at)
		VALUES (gen_random_uuid(), $1, $2, NOW(), NOW())
		ON CONFLICT (user_a, user_b) DO UPDATE SET user_a = EXCLUDED.user_a
		RETURNING ` + conversationColumns
	return scanConversation(r.pool.QueryRow(ctx, insert, userA, userB))
}

// GetConversationByID fetches one conversation.
func (r *Repository) GetConversationByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

// ListConversations returns the user's threads, most recent activity first,
// with per-thread unread counts.
func (r *Repository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	const query = `SELECT c.id, c.user_a, c.user_b, c.created_at, c.last_message_at,
		(SELECT COUNT(1) FROM messages m
			WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read = FALSE) AS unread
		FROM conversations c
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY c.last_message_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	summaries := make([]domain.ConversationSummary, 0)
	for rows.Next() {
		var s domain.ConversationSummary
		if err := rows.Scan(&s.Conversation.ID, &s.Conversation.UserA, &s.Conversation.UserB,
			&s.Conversation.CreatedAt, &s.Conversation.LastMessageAt, &s.UnreadCount); err != nil {
			return nil, translateErr(err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// CreateMessage appends a message and bumps the conversation timestamp.
func (r *Repository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO messages (id, conversation_id, sender_id, body, system, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insert, msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.System, msg.Read, msg.CreatedAt); err != nil {
		return translateErr(err)
	}
	tag, err := tx.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, msg.ConversationID, msg.CreatedAt)
	if err != nil {
		return translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit(ctx)
}

// ListMessages returns messages in creation order. after is an exclusive
// message ID cursor; empty means from the beginning.
func (r *Repository) ListMessages(ctx context.Context, conversationID string, after string, limit int) ([]domain.Message, error) {
	query := `SELECT id, conversation_id, sender_id, body, system, read, created_at
		FROM messages WHERE conversation_id = $1`
	args := []any{conversationID, limit}
	if after != "" {
		query += ` AND (created_at, id) > (SELECT created_at, id FROM messages WHERE id = $3)`
		args = append(args, after)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.System, &m.Read, &m.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkMessagesRead flags all messages sent to the reader as read.
func (r *Repository) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int, error) {
	const query = `UPDATE messages SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	tag, err := r.pool.Exec(ctx, query, conversationID, readerID)
	if err != nil {
		return 0, translateErr(err)
	}
	return int(tag.RowsAffected()), nil
}
