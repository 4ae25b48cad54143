package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/models"
)

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.DB{DB: db}, mock
}

func strPtr(s string) *string { return &s }

func TestMessageRepository_Append(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(sqlmock.AnyArg(), "AB12CD_XY34YZ", "hi", nil, "AB12CD", "Anna").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "sent_at"}).AddRow(7, sentAt))
	mock.ExpectCommit()

	msg := &models.Message{
		ConversationID: "AB12CD_XY34YZ",
		Text:           strPtr("hi"),
		SenderID:       "AB12CD",
		SenderName:     "Anna",
	}
	require.NoError(t, repo.Append(context.Background(), msg))

	assert.Equal(t, int64(7), msg.Seq)
	assert.Equal(t, sentAt, msg.Timestamp)
	assert.False(t, msg.Read)
	assert.Equal(t, [2]string{"AB12CD", "XY34YZ"}, msg.Participants)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", msg.ID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_AppendRejectsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	err := repo.Append(context.Background(), &models.Message{
		ConversationID: "AB12CD_XY34YZ",
		Text:           strPtr("   "),
		SenderID:       "AB12CD",
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)
	t1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{"seq", "id", "conversation_key", "text", "image_url", "sender_id", "sender_name", "sent_at", "read"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sent_at ASC, seq ASC")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "6f1c2a4e-5b7d-4c3e-9a1f-2b3c4d5e6f70", "AB12CD_XY34YZ", "hello", nil, "AB12CD", "Anna", t1, true).
			AddRow(2, "6f1c2a4e-5b7d-4c3e-9a1f-2b3c4d5e6f71", "AB12CD_XY34YZ", nil, "https://img/1.jpg", "XY34YZ", "Bob", t1, false))

	msgs, err := repo.List(context.Background(), "AB12CD_XY34YZ")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "hello", *msgs[0].Text)
	assert.Nil(t, msgs[0].ImageURL)
	assert.Nil(t, msgs[1].Text)
	assert.Equal(t, "https://img/1.jpg", *msgs[1].ImageURL)
	assert.Equal(t, [2]string{"AB12CD", "XY34YZ"}, msgs[1].Participants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_MarkRead(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE messages")).
		WithArgs("AB12CD_XY34YZ", "XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkRead(context.Background(), "AB12CD_XY34YZ", "XY34YZ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_UpsertAfterSend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE conversations.last_message_at <= EXCLUDED.last_message_at")).
		WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ", models.ImagePlaceholder, "XY34YZ", sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("unread_count = conversation_unread.unread_count + EXCLUDED.unread_count")).
		WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.UpsertAfterSend(context.Background(), &models.Message{
		ConversationID: "AB12CD_XY34YZ",
		ImageURL:       strPtr("https://img/1.jpg"),
		SenderID:       "XY34YZ",
		Timestamp:      sentAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_UpsertRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversations")).
		WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ", "hi", "AB12CD", sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversation_unread")).
		WithArgs("AB12CD_XY34YZ", "XY34YZ", "AB12CD").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.UpsertAfterSend(context.Background(), &models.Message{
		ConversationID: "AB12CD_XY34YZ",
		Text:           strPtr("hi"),
		SenderID:       "AB12CD",
		Timestamp:      sentAt,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to increment unread count")
	assert.NoError(t, mock.ExpectationsWereMet())
}

var summaryCols = []string{"conversation_key", "participant_a", "participant_b", "last_message",
	"last_message_sender_id", "last_message_at", "unread_a", "unread_b"}

func TestConversationRepository_ListForParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)
	t1 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.participant_a = $1 OR c.participant_b = $1")).
		WithArgs("AB12CD").
		WillReturnRows(sqlmock.NewRows(summaryCols).
			AddRow("AB12CD_XY34YZ", "AB12CD", "XY34YZ", "hi", "XY34YZ", t1, 2, 0).
			AddRow("AB12CD_GH56IJ", "AB12CD", "GH56IJ", "[Image]", "AB12CD", t0, 0, 1))

	list, err := repo.ListForParticipant(context.Background(), "AB12CD")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, map[string]int{"AB12CD": 2, "XY34YZ": 0}, list[0].UnreadCounts)
	assert.Equal(t, map[string]int{"AB12CD": 0, "GH56IJ": 1}, list[1].UnreadCounts)
	assert.Equal(t, t1, list[0].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.conversation_key = $1")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnRows(sqlmock.NewRows(summaryCols))

	_, err := repo.Get(context.Background(), "AB12CD_XY34YZ")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_Rebuild(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)
	t1 := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sent_at DESC, seq DESC")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnRows(sqlmock.NewRows([]string{"text", "image_url", "sender_id", "sent_at"}).
			AddRow("latest", nil, "XY34YZ", t1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversations")).
		WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ", "latest", "XY34YZ", t1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET unread_count = EXCLUDED.unread_count")).
		WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.conversation_key = $1")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnRows(sqlmock.NewRows(summaryCols).
			AddRow("AB12CD_XY34YZ", "AB12CD", "XY34YZ", "latest", "XY34YZ", t1, 4, 0))

	summary, err := repo.Rebuild(context.Background(), "AB12CD_XY34YZ")
	require.NoError(t, err)
	assert.Equal(t, "latest", summary.LastMessage)
	assert.Equal(t, 4, summary.UnreadCounts["AB12CD"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_RebuildEmptyLogRemovesSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sent_at DESC, seq DESC")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnRows(sqlmock.NewRows([]string{"text", "image_url", "sender_id", "sent_at"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conversations")).
		WithArgs("AB12CD_XY34YZ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Rebuild(context.Background(), "AB12CD_XY34YZ")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSafetyRepository_BlockExistsChecksBothDirections(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSafetyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("AB12CD_XY34YZ", "XY34YZ_AB12CD").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	blocked, err := repo.BlockExists(context.Background(), "AB12CD", "XY34YZ")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSafetyRepository_AddBlockIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSafetyRepository(db)

	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
			WithArgs("AB12CD_XY34YZ", "AB12CD", "XY34YZ").
			WillReturnResult(sqlmock.NewResult(0, int64(1-i)))
	}

	for i := 0; i < 2; i++ {
		b := &models.Block{BlockerID: "AB12CD", BlockedID: "XY34YZ"}
		require.NoError(t, repo.AddBlock(context.Background(), b))
		assert.Equal(t, "AB12CD_XY34YZ", b.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByPlateNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE license_plate = $1")).
		WithArgs("AB12CD").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByPlate(context.Background(), "AB12CD")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SearchByPlate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE license_plate ILIKE $1")).
		WithArgs("%AB12%", 20).
		WillReturnRows(sqlmock.NewRows([]string{"license_plate", "username"}).
			AddRow("AB12CD", "Anna").
			AddRow("AB12XY", "Bob"))

	matches, err := repo.SearchByPlate(context.Background(), "AB12", 20)
	require.NoError(t, err)
	assert.Equal(t, []models.PlateMatch{{Plate: "AB12CD", Owner: "Anna"}, {Plate: "AB12XY", Owner: "Bob"}}, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SearchByPlateNoHits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE license_plate ILIKE $1")).
		WithArgs("%ZZ99%", 5).
		WillReturnRows(sqlmock.NewRows([]string{"license_plate", "username"}))

	matches, err := repo.SearchByPlate(context.Background(), "ZZ99", 5)
	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
