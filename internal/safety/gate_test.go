package safety

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/models"
)

type memoryStore struct {
	mu      sync.Mutex
	blocks  map[string]models.Block
	reports []models.Report
	fail    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blocks: map[string]models.Block{}}
}

func (m *memoryStore) AddBlock(_ context.Context, b *models.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	b.ID = b.BlockerID + "_" + b.BlockedID
	if _, ok := m.blocks[b.ID]; !ok {
		b.CreatedAt = time.Now()
		m.blocks[b.ID] = *b
	}
	return nil
}

func (m *memoryStore) BlockExists(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	_, ab := m.blocks[a+"_"+b]
	_, ba := m.blocks[b+"_"+a]
	return ab || ba, nil
}

func (m *memoryStore) ListBlocked(_ context.Context, blocker string) ([]models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.Block{}
	for _, b := range m.blocks {
		if b.BlockerID == blocker {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *memoryStore) AddReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.reports = append(m.reports, *r)
	return nil
}

func TestGate_BlockIsCheckedInBothDirections(t *testing.T) {
	ctx := context.Background()
	g := NewGate(newMemoryStore())

	_, err := g.Block(ctx, "ab-12-cd", "XY34YZ")
	require.NoError(t, err)

	for _, pair := range [][2]string{{"AB12CD", "XY34YZ"}, {"XY34YZ", "AB12CD"}, {"xy-34-yz", "ab12cd"}} {
		blocked, err := g.IsBlocked(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked, "%s -> %s", pair[0], pair[1])
	}

	blocked, err := g.IsBlocked(ctx, "AB12CD", "GH56IJ")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGate_BlockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	g := NewGate(store)

	first, err := g.Block(ctx, "AB12CD", "XY34YZ")
	require.NoError(t, err)
	second, err := g.Block(ctx, "AB12CD", "XY34YZ")
	require.NoError(t, err)

	assert.Equal(t, "AB12CD_XY34YZ", first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.blocks, 1)

	ids, err := g.ListBlocked(ctx, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, []string{"XY34YZ"}, ids)
}

func TestGate_BlockRejectsInvalidIdentifiers(t *testing.T) {
	g := NewGate(newMemoryStore())

	tests := []struct {
		name    string
		blocker string
		blocked string
	}{
		{"empty blocker", "", "XY34YZ"},
		{"separators only", "--", "XY34YZ"},
		{"self block", "AB12CD", "ab-12-cd"},
		{"blocked too long", "AB12CD", strings.Repeat("X", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Block(context.Background(), tt.blocker, tt.blocked)
			assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)
		})
	}
}

func TestGate_StoreFailureIsStoreUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.fail = errors.New("connection refused")
	g := NewGate(store)

	_, err := g.IsBlocked(context.Background(), "AB12CD", "XY34YZ")
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)

	_, err = g.Report(context.Background(), "AB12CD", "XY34YZ", "spam", "")
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestGate_Report(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	g := NewGate(store)

	report, err := g.Report(ctx, "ab12cd", "xy-34-yz", "rude", "")
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeUser, report.Type)
	assert.Equal(t, models.ReportStatusOpen, report.Status)
	assert.Equal(t, "XY34YZ", report.ReportedID)

	report, err = g.Report(ctx, "AB12CD", "AB12CD_XY34YZ", "spam", models.ReportTypeConversation)
	require.NoError(t, err)
	assert.Equal(t, "AB12CD_XY34YZ", report.ReportedID)

	_, err = g.Report(ctx, "AB12CD", "XY34YZ", "spam", models.ReportTypeConversation)
	assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)

	assert.Len(t, store.reports, 2)
}
