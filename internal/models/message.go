package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
)

// MaxTextLength bounds the text of a single message.
const MaxTextLength = 10000

// ImagePlaceholder stands in for the text of image-only messages in
// summaries and notifications.
const ImagePlaceholder = "[Image]"

type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID string    `json:"conversationId" db:"conversation_key"`
	Participants   [2]string `json:"participants" db:"-"`
	Text           *string   `json:"text,omitempty" db:"text"`
	ImageURL       *string   `json:"imageUrl,omitempty" db:"image_url"`
	SenderID       string    `json:"senderId" db:"sender_id"`
	SenderName     string    `json:"senderName" db:"sender_name"`
	Timestamp      time.Time `json:"timestamp" db:"sent_at"`
	Read           bool      `json:"read" db:"read"`
	Seq            int64     `json:"-" db:"seq"`
}

// HasText reports whether the message carries non-blank text.
func (m *Message) HasText() bool {
	return m.Text != nil && strings.TrimSpace(*m.Text) != ""
}

// HasImage reports whether the message carries an image URL.
func (m *Message) HasImage() bool {
	return m.ImageURL != nil && strings.TrimSpace(*m.ImageURL) != ""
}

// Validate checks content and sender before anything is persisted.
func (m *Message) Validate() error {
	if m.ConversationID == "" || m.SenderID == "" {
		return apperror.ErrInvalidMessage
	}
	if !m.HasText() && !m.HasImage() {
		return apperror.ErrInvalidMessage
	}
	if m.Text != nil && len([]rune(*m.Text)) > MaxTextLength {
		return apperror.InvalidMessage("message text too long")
	}
	return nil
}

// Preview is what summaries and push notifications show for the message.
func (m *Message) Preview() string {
	if m.HasText() {
		return *m.Text
	}
	return ImagePlaceholder
}

type SendMessageRequest struct {
	ConversationID string  `json:"conversationId"`
	RecipientID    string  `json:"recipientId"`
	Text           *string `json:"text,omitempty"`
	ImageURL       *string `json:"imageUrl,omitempty"`
	SenderID       string  `json:"senderId" binding:"required"`
	SenderName     string  `json:"senderName"`
}

type GetMessagesRequest struct {
	ConversationID string `form:"conversationId" binding:"required"`
	Since          string `form:"since"`
}

type MarkReadRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	UserID         string `json:"userId" binding:"required"`
}

type MarkReadResponse struct {
	Marked int `json:"marked"`
}
