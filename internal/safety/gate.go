// Package safety decides whether two participants may exchange messages and
// records blocks and reports.
package safety

import (
	"context"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

// BlockStore persists block edges and reports.
type BlockStore interface {
	AddBlock(ctx context.Context, block *models.Block) error
	BlockExists(ctx context.Context, a, b string) (bool, error)
	ListBlocked(ctx context.Context, blockerID string) ([]models.Block, error)
	AddReport(ctx context.Context, report *models.Report) error
}

type Gate struct {
	store BlockStore
}

func NewGate(store BlockStore) *Gate {
	return &Gate{store: store}
}

// IsBlocked reports whether either participant blocked the other. The stored
// edge is directed but the check is not.
func (g *Gate) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	na, err := identity.Validate(a)
	if err != nil {
		return false, err
	}
	nb, err := identity.Validate(b)
	if err != nil {
		return false, err
	}

	blocked, err := g.store.BlockExists(ctx, na, nb)
	if err != nil {
		return false, apperror.StoreUnavailable(err)
	}
	return blocked, nil
}

// Block records blockerID -> blockedID. Blocking twice is a no-op.
func (g *Gate) Block(ctx context.Context, blockerID, blockedID string) (*models.Block, error) {
	blocker, err := identity.Validate(blockerID)
	if err != nil {
		return nil, err
	}
	blocked, err := identity.Validate(blockedID)
	if err != nil {
		return nil, err
	}
	if blocker == blocked {
		return nil, apperror.InvalidIdentifier("cannot block yourself")
	}

	block := &models.Block{BlockerID: blocker, BlockedID: blocked}
	if err := g.store.AddBlock(ctx, block); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return block, nil
}

// ListBlocked returns the ids blockerID has blocked
func (g *Gate) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	blocker, err := identity.Validate(blockerID)
	if err != nil {
		return nil, err
	}

	blocks, err := g.store.ListBlocked(ctx, blocker)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.BlockedID)
	}
	return ids, nil
}

// Report appends a report. A conversation report names a conversation key
// in reportedID.
func (g *Gate) Report(ctx context.Context, reporterID, reportedID, reason, reportType string) (*models.Report, error) {
	if reportType == "" {
		reportType = models.ReportTypeUser
	}
	reporter, err := identity.Validate(reporterID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:         uuid.New(),
		ReporterID: reporter,
		Reason:     reason,
		Type:       reportType,
		Status:     models.ReportStatusOpen,
	}

	switch reportType {
	case models.ReportTypeUser:
		reported, err := identity.Validate(reportedID)
		if err != nil {
			return nil, err
		}
		report.ReportedID = reported
	case models.ReportTypeConversation:
		if _, _, err := identity.SplitKey(reportedID); err != nil {
			return nil, err
		}
		report.ReportedID = reportedID
	default:
		return nil, apperror.InvalidArg("unknown report type")
	}

	if err := g.store.AddReport(ctx, report); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return report, nil
}
