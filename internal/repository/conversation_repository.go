package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const upsertSummaryQuery = `
	INSERT INTO conversations (conversation_key, participant_a, participant_b, last_message, last_message_sender_id, last_message_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (conversation_key) DO UPDATE
	SET last_message = EXCLUDED.last_message,
		last_message_sender_id = EXCLUDED.last_message_sender_id,
		last_message_at = EXCLUDED.last_message_at
`

const selectSummaryQuery = `
	SELECT c.conversation_key, c.participant_a, c.participant_b, c.last_message,
		c.last_message_sender_id, c.last_message_at,
		COALESCE(ua.unread_count, 0), COALESCE(ub.unread_count, 0)
	FROM conversations c
	LEFT JOIN conversation_unread ua
		ON ua.conversation_key = c.conversation_key AND ua.participant_id = c.participant_a
	LEFT JOIN conversation_unread ub
		ON ub.conversation_key = c.conversation_key AND ub.participant_id = c.participant_b
`

// UpsertAfterSend records message as the latest in its conversation and
// bumps the recipient's unread counter. Both writes commit together. A
// message older than the stored one leaves the last-message fields alone.
func (r *ConversationRepository) UpsertAfterSend(ctx context.Context, message *models.Message) error {
	participants, err := identity.Participants(message.ConversationID)
	if err != nil {
		return err
	}
	recipientID, err := identity.Other(message.ConversationID, message.SenderID)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			upsertSummaryQuery+` WHERE conversations.last_message_at <= EXCLUDED.last_message_at`,
			message.ConversationID,
			participants[0],
			participants[1],
			message.Preview(),
			message.SenderID,
			message.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		query := `
			INSERT INTO conversation_unread (conversation_key, participant_id, unread_count)
			VALUES ($1, $2, 1), ($1, $3, 0)
			ON CONFLICT (conversation_key, participant_id) DO UPDATE
			SET unread_count = conversation_unread.unread_count + EXCLUDED.unread_count
		`
		if _, err := tx.ExecContext(ctx, query, message.ConversationID, recipientID, message.SenderID); err != nil {
			return fmt.Errorf("failed to increment unread count: %w", err)
		}
		return nil
	})
}

// ClearUnread resets one participant's counter to zero
func (r *ConversationRepository) ClearUnread(ctx context.Context, conversationKey, participantID string) error {
	query := `
		UPDATE conversation_unread
		SET unread_count = 0
		WHERE conversation_key = $1 AND participant_id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, conversationKey, participantID); err != nil {
		return fmt.Errorf("failed to clear unread count: %w", err)
	}
	return nil
}

// ListForParticipant returns every summary the participant is part of,
// newest first.
func (r *ConversationRepository) ListForParticipant(ctx context.Context, participantID string) ([]models.ConversationSummary, error) {
	query := selectSummaryQuery + `
		WHERE c.participant_a = $1 OR c.participant_b = $1
		ORDER BY c.last_message_at DESC, c.conversation_key ASC
	`

	rows, err := r.db.QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return summaries, nil
}

// Get returns one summary
func (r *ConversationRepository) Get(ctx context.Context, conversationKey string) (*models.ConversationSummary, error) {
	row := r.db.QueryRowContext(ctx, selectSummaryQuery+` WHERE c.conversation_key = $1`, conversationKey)

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Rebuild recomputes a summary from the message log, overwriting whatever is
// stored. A conversation without messages has its summary removed.
func (r *ConversationRepository) Rebuild(ctx context.Context, conversationKey string) (*models.ConversationSummary, error) {
	participants, err := identity.Participants(conversationKey)
	if err != nil {
		return nil, err
	}

	empty := false
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, conversationKey); err != nil {
			return fmt.Errorf("failed to lock conversation: %w", err)
		}

		latest := models.Message{ConversationID: conversationKey}
		var text, imageURL sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT text, image_url, sender_id, sent_at
			FROM messages
			WHERE conversation_key = $1
			ORDER BY sent_at DESC, seq DESC
			LIMIT 1
		`, conversationKey).Scan(&text, &imageURL, &latest.SenderID, &latest.Timestamp)
		if errors.Is(err, sql.ErrNoRows) {
			empty = true
			if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_key = $1`, conversationKey); err != nil {
				return fmt.Errorf("failed to delete conversation: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get latest message: %w", err)
		}
		if text.Valid {
			latest.Text = &text.String
		}
		if imageURL.Valid {
			latest.ImageURL = &imageURL.String
		}

		_, err = tx.ExecContext(
			ctx,
			upsertSummaryQuery,
			conversationKey,
			participants[0],
			participants[1],
			latest.Preview(),
			latest.SenderID,
			latest.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_unread (conversation_key, participant_id, unread_count)
			SELECT $1, p.id, (
				SELECT COUNT(*) FROM messages m
				WHERE m.conversation_key = $1 AND m.read = false AND m.sender_id <> p.id
			)
			FROM (VALUES ($2::varchar), ($3::varchar)) AS p(id)
			ON CONFLICT (conversation_key, participant_id) DO UPDATE
			SET unread_count = EXCLUDED.unread_count
		`, conversationKey, participants[0], participants[1])
		if err != nil {
			return fmt.Errorf("failed to recount unread messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, apperror.NotFound("conversation has no messages")
	}

	return r.Get(ctx, conversationKey)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.ConversationSummary, error) {
	var (
		summary          models.ConversationSummary
		unreadA, unreadB int
		lastMessageAt    time.Time
	)

	err := row.Scan(
		&summary.ConversationID,
		&summary.Participants[0],
		&summary.Participants[1],
		&summary.LastMessage,
		&summary.LastMessageSenderID,
		&lastMessageAt,
		&unreadA,
		&unreadB,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	summary.Timestamp = lastMessageAt
	summary.UnreadCounts = map[string]int{
		summary.Participants[0]: unreadA,
		summary.Participants[1]: unreadB,
	}
	return &summary, nil
}
