package repository

import (
	"context"
	"fmt"

	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/models"
)

type SafetyRepository struct {
	db *database.DB
}

func NewSafetyRepository(db *database.DB) *SafetyRepository {
	return &SafetyRepository{db: db}
}

// BlockID is the deterministic id of the blocker -> blocked edge
func BlockID(blockerID, blockedID string) string {
	return blockerID + "_" + blockedID
}

// AddBlock records a block. Repeating it is a no-op.
func (r *SafetyRepository) AddBlock(ctx context.Context, block *models.Block) error {
	block.ID = BlockID(block.BlockerID, block.BlockedID)

	query := `INSERT INTO blocks (id, blocker_id, blocked_id, created_at) VALUES ($1,$2,$3,NOW()) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, block.ID, block.BlockerID, block.BlockedID); err != nil {
		return fmt.Errorf("failed to add block: %w", err)
	}
	return nil
}

// BlockExists reports whether either participant has blocked the other
func (r *SafetyRepository) BlockExists(ctx context.Context, a, b string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM blocks WHERE id = $1 OR id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, BlockID(a, b), BlockID(b, a)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return exists, nil
}

func (r *SafetyRepository) ListBlocked(ctx context.Context, blockerID string) ([]models.Block, error) {
	query := `SELECT id, blocker_id, blocked_id, created_at FROM blocks WHERE blocker_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, blockerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	res := []models.Block{}
	for rows.Next() {
		var b models.Block
		if err := rows.Scan(&b.ID, &b.BlockerID, &b.BlockedID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// AddReport appends a report
func (r *SafetyRepository) AddReport(ctx context.Context, report *models.Report) error {
	query := `INSERT INTO reports (id, reporter_id, reported_id, reason, type, status, created_at) VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, report.ID, report.ReporterID, report.ReportedID, report.Reason, report.Type, report.Status).
		Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}
