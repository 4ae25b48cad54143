package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `seq, id, conversation_key, text, image_url, sender_id, sender_name, sent_at, read`

// Append stores a new message. The id and timestamp are assigned here; the
// timestamp is strictly after the newest message already in the conversation,
// so ListSince never skips a message.
func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	participants, err := identity.Participants(message.ConversationID)
	if err != nil {
		return err
	}

	message.ID = uuid.New()
	message.Read = false
	message.Participants = participants

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Serializes appends within one conversation so timestamps follow
		// insertion order.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, message.ConversationID); err != nil {
			return fmt.Errorf("failed to lock conversation: %w", err)
		}

		query := `
			INSERT INTO messages (id, conversation_key, text, image_url, sender_id, sender_name, sent_at, read)
			VALUES ($1, $2, $3, $4, $5, $6,
				GREATEST(clock_timestamp(), COALESCE((SELECT MAX(sent_at) FROM messages WHERE conversation_key = $2) + interval '1 microsecond', clock_timestamp())),
				false)
			RETURNING seq, sent_at
		`

		err := tx.QueryRowContext(
			ctx,
			query,
			message.ID,
			message.ConversationID,
			message.Text,
			message.ImageURL,
			message.SenderID,
			message.SenderName,
		).Scan(&message.Seq, &message.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
}

// List returns the full history of a conversation, oldest first
func (r *MessageRepository) List(ctx context.Context, conversationKey string) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_key = $1
		ORDER BY sent_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListSince returns messages strictly newer than since, oldest first
func (r *MessageRepository) ListSince(ctx context.Context, conversationKey string, since time.Time) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_key = $1 AND sent_at > $2
		ORDER BY sent_at ASC, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationKey, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkRead flips every unread message not sent by readerID and returns how
// many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationKey, readerID string) (int, error) {
	query := `
		UPDATE messages
		SET read = true
		WHERE conversation_key = $1
		AND sender_id <> $2
		AND read = false
	`

	result, err := r.db.ExecContext(ctx, query, conversationKey, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(n), nil
}

// ConversationKeys lists every conversation that has at least one message.
func (r *MessageRepository) ConversationKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT conversation_key FROM messages ORDER BY conversation_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan conversation key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var text, imageURL sql.NullString

		err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.ConversationID,
			&text,
			&imageURL,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Timestamp,
			&msg.Read,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if text.Valid {
			msg.Text = &text.String
		}
		if imageURL.Valid {
			msg.ImageURL = &imageURL.String
		}
		if p, err := identity.Participants(msg.ConversationID); err == nil {
			msg.Participants = p
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}
