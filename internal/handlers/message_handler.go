package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/messaging"
	"github.com/cartalks/backend/internal/models"
)

// Messenger is the messaging service as seen by the HTTP layer.
type Messenger interface {
	Send(ctx context.Context, in messaging.SendInput) (*models.Message, error)
	FetchHistory(ctx context.Context, conversationKey string) ([]models.Message, error)
	FetchSince(ctx context.Context, conversationKey string, since time.Time) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationKey, readerID string) (int, error)
	ListConversations(ctx context.Context, participantID string) ([]models.ConversationSummary, error)
	GetSummary(ctx context.Context, conversationKey string) (*models.ConversationSummary, error)
	RebuildSummary(ctx context.Context, conversationKey string) (*models.ConversationSummary, error)
}

type MessageHandler struct {
	messenger Messenger
}

func NewMessageHandler(messenger Messenger) *MessageHandler {
	return &MessageHandler{messenger: messenger}
}

// GetMessages returns a conversation's messages, oldest first. With since,
// only newer messages are returned.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if !participantOf(c, req.ConversationID, false) {
		return
	}

	var (
		messages []models.Message
		err      error
	)
	if req.Since != "" {
		since, perr := time.Parse(time.RFC3339Nano, req.Since)
		if perr != nil {
			respondError(c, apperror.InvalidArg("since must be an RFC 3339 timestamp"))
			return
		}
		messages, err = h.messenger.FetchSince(c.Request.Context(), req.ConversationID, since)
	} else {
		messages, err = h.messenger.FetchHistory(c.Request.Context(), req.ConversationID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage sends a new message
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := actingAs(c, req.SenderID)
	if !ok {
		return
	}

	senderName := req.SenderName
	if senderName == "" {
		senderName = user.Username
	}

	message, err := h.messenger.Send(c.Request.Context(), messaging.SendInput{
		ConversationID: req.ConversationID,
		RecipientID:    req.RecipientID,
		SenderID:       user.LicensePlate,
		SenderName:     senderName,
		Text:           req.Text,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// MarkAsRead marks every message the user received in a conversation as read
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := actingAs(c, req.UserID)
	if !ok {
		return
	}

	marked, err := h.messenger.MarkConversationRead(c.Request.Context(), req.ConversationID, user.LicensePlate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MarkReadResponse{Marked: marked})
}
