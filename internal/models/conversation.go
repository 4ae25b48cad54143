package models

import "time"

// ConversationSummary is the list-view projection of one conversation's
// message log.
type ConversationSummary struct {
	ConversationID      string         `json:"conversationId" db:"conversation_key"`
	Participants        [2]string      `json:"participants"`
	LastMessage         string         `json:"lastMessage" db:"last_message"`
	LastMessageSenderID string         `json:"lastMessageSenderId" db:"last_message_sender_id"`
	Timestamp           time.Time      `json:"timestamp" db:"last_message_at"`
	UnreadCounts        map[string]int `json:"unreadCounts"`
}

type GetConversationsRequest struct {
	LicensePlate string `form:"licensePlate" binding:"required"`
}
