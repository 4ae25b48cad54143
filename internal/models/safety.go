package models

import (
	"time"

	"github.com/google/uuid"
)

// Block is a directed edge; the gate checks it in both directions.
type Block struct {
	ID        string    `json:"id" db:"id"` // blocker_blocked
	BlockerID string    `json:"blockerId" db:"blocker_id"`
	BlockedID string    `json:"blockedId" db:"blocked_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

const (
	ReportTypeUser         = "user"
	ReportTypeConversation = "conversation"

	ReportStatusOpen = "open"
)

// Report records a complaint. Reports are append-only.
type Report struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ReporterID string    `json:"reporterId" db:"reporter_id"`
	ReportedID string    `json:"reportedId" db:"reported_id"`
	Reason     string    `json:"reason" db:"reason"`
	Type       string    `json:"type" db:"type"` // user, conversation
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"timestamp" db:"created_at"`
}

type BlockRequest struct {
	BlockerID string `json:"blockerId" binding:"required"`
	BlockedID string `json:"blockedId" binding:"required"`
}

type ReportRequest struct {
	ReporterID string `json:"reporterId" binding:"required"`
	ReportedID string `json:"reportedId" binding:"required"`
	Reason     string `json:"reason" binding:"max=2000"`
	Type       string `json:"type" binding:"omitempty,oneof=user conversation"`
}
