package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartalks/backend/internal/models"
)

type ConversationHandler struct {
	messenger Messenger
}

func NewConversationHandler(messenger Messenger) *ConversationHandler {
	return &ConversationHandler{messenger: messenger}
}

// GetConversations lists the user's conversations, newest first
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	var req models.GetConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := actingAs(c, req.LicensePlate)
	if !ok {
		return
	}

	summaries, err := h.messenger.ListConversations(c.Request.Context(), user.LicensePlate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetConversation returns one conversation summary
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	key := c.Param("id")
	if !participantOf(c, key, true) {
		return
	}

	summary, err := h.messenger.GetSummary(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RebuildConversation recomputes a summary from the message log
func (h *ConversationHandler) RebuildConversation(c *gin.Context) {
	key := c.Param("id")
	if !participantOf(c, key, true) {
		return
	}

	summary, err := h.messenger.RebuildSummary(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
