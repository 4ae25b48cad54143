// Package messaging implements the send pipeline and the read protocol on
// top of the message store, the summary store and the safety gate.
package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
	"github.com/cartalks/backend/internal/notify"
)

// MessageStore is the append-only message log.
type MessageStore interface {
	Append(ctx context.Context, message *models.Message) error
	List(ctx context.Context, conversationKey string) ([]models.Message, error)
	ListSince(ctx context.Context, conversationKey string, since time.Time) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationKey, readerID string) (int, error)
	ConversationKeys(ctx context.Context) ([]string, error)
}

// SummaryStore keeps one summary per conversation.
type SummaryStore interface {
	UpsertAfterSend(ctx context.Context, message *models.Message) error
	ClearUnread(ctx context.Context, conversationKey, participantID string) error
	ListForParticipant(ctx context.Context, participantID string) ([]models.ConversationSummary, error)
	Get(ctx context.Context, conversationKey string) (*models.ConversationSummary, error)
	Rebuild(ctx context.Context, conversationKey string) (*models.ConversationSummary, error)
}

type Gate interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// Observer is told about send outcomes, e.g. metrics.Collector.
type Observer interface {
	MessageSent()
	SendRejected(code apperror.Code)
	SummaryFailed()
	NotifyFailed()
}

type nopObserver struct{}

func (nopObserver) MessageSent() {}
func (nopObserver) SendRejected(apperror.Code) {}
func (nopObserver) SummaryFailed() {}
func (nopObserver) NotifyFailed() {}

// DefaultNotifyTimeout bounds one notification dispatch.
const DefaultNotifyTimeout = 5 * time.Second

type Service struct {
	messages   MessageStore
	summaries  SummaryStore
	gate       Gate
	dispatcher notify.Dispatcher
	logger     *zap.Logger
	observer   Observer

	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

func NewService(messages MessageStore, summaries SummaryStore, gate Gate, dispatcher notify.Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		messages:      messages,
		summaries:     summaries,
		gate:          gate,
		dispatcher:    dispatcher,
		logger:        logger,
		observer:      nopObserver{},
		notifyTimeout: DefaultNotifyTimeout,
	}
}

// WithObserver reports send outcomes to o.
func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// SendInput names the conversation either by key or by recipient. When both
// are set they must agree.
type SendInput struct {
	ConversationID string
	RecipientID    string
	SenderID       string
	SenderName     string
	Text           *string
	ImageURL       *string
}

// Send runs the send pipeline. A returned message is Delivered; an error is
// either a rejection (InvalidIdentifier, InvalidMessage, Blocked, Forbidden)
// with no side effects, or StoreUnavailable when nothing was persisted.
func (s *Service) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	message, err := s.send(ctx, in)
	if err != nil {
		s.observer.SendRejected(apperror.CodeOf(err))
		return nil, err
	}
	s.observer.MessageSent()
	return message, nil
}

func (s *Service) send(ctx context.Context, in SendInput) (*models.Message, error) {
	key, recipient, err := resolve(in)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ConversationID: key,
		SenderID:       identity.Normalize(in.SenderID),
		SenderName:     strings.TrimSpace(in.SenderName),
		Text:           trimmed(in.Text),
		ImageURL:       trimmed(in.ImageURL),
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	blocked, err := s.gate.IsBlocked(ctx, message.SenderID, recipient)
	if err != nil {
		return nil, storeError(err)
	}
	if blocked {
		return nil, apperror.ErrBlocked
	}

	if err := s.messages.Append(ctx, message); err != nil {
		return nil, storeError(err)
	}

	if err := s.summaries.UpsertAfterSend(ctx, message); err != nil {
		s.observer.SummaryFailed()
		s.logger.Warn("conversation summary not updated",
			zap.String("conversation_id", key),
			zap.String("message_id", message.ID.String()),
			zap.Error(apperror.Wrap(apperror.CodeSummaryInconsistent, "summary upsert failed", err)),
		)
	}

	s.dispatch(recipient, message)
	return message, nil
}

func (s *Service) dispatch(recipient string, message *models.Message) {
	if s.dispatcher == nil {
		return
	}

	title := message.SenderName
	if title == "" {
		title = message.SenderID
	}
	n := notify.Notification{
		RecipientID: recipient,
		Title:       title,
		Body:        message.Preview(),
		Data: map[string]string{
			"conversationId": message.ConversationID,
			"messageId":      message.ID.String(),
			"senderId":       message.SenderID,
		},
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.dispatcher.Notify(ctx, n); err != nil {
			s.observer.NotifyFailed()
			s.logger.Debug("push dispatch failed", zap.String("recipient_id", recipient), zap.Error(err))
		}
	}()
}

// Wait blocks until every pending notification dispatch has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// FetchHistory returns the whole conversation, oldest first.
func (s *Service) FetchHistory(ctx context.Context, conversationKey string) ([]models.Message, error) {
	if _, _, err := identity.SplitKey(conversationKey); err != nil {
		return nil, err
	}
	messages, err := s.messages.List(ctx, conversationKey)
	if err != nil {
		return nil, storeError(err)
	}
	return messages, nil
}

// FetchSince returns messages newer than since, oldest first.
func (s *Service) FetchSince(ctx context.Context, conversationKey string, since time.Time) ([]models.Message, error) {
	if _, _, err := identity.SplitKey(conversationKey); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListSince(ctx, conversationKey, since)
	if err != nil {
		return nil, storeError(err)
	}
	return messages, nil
}

// MarkConversationRead marks everything the reader received as read and then
// zeroes the reader's unread counter. The counter reset is best effort. The
// two writes are separate, so a send to the reader landing between them is
// either zeroed while still unread or counted after being marked read; the
// counter stays off by one until the next RebuildSummary.
func (s *Service) MarkConversationRead(ctx context.Context, conversationKey, readerID string) (int, error) {
	reader := identity.Normalize(readerID)
	if _, err := identity.Other(conversationKey, reader); err != nil {
		return 0, err
	}

	marked, err := s.messages.MarkRead(ctx, conversationKey, reader)
	if err != nil {
		return 0, storeError(err)
	}

	if err := s.summaries.ClearUnread(ctx, conversationKey, reader); err != nil {
		s.logger.Warn("unread counter not cleared",
			zap.String("conversation_id", conversationKey),
			zap.String("reader_id", reader),
			zap.Error(apperror.Wrap(apperror.CodeSummaryInconsistent, "clear unread failed", err)),
		)
	}
	return marked, nil
}

// ListConversations returns the participant's summaries, newest first.
func (s *Service) ListConversations(ctx context.Context, participantID string) ([]models.ConversationSummary, error) {
	id, err := identity.Validate(participantID)
	if err != nil {
		return nil, err
	}
	summaries, err := s.summaries.ListForParticipant(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return summaries, nil
}

func (s *Service) GetSummary(ctx context.Context, conversationKey string) (*models.ConversationSummary, error) {
	if _, _, err := identity.SplitKey(conversationKey); err != nil {
		return nil, err
	}
	summary, err := s.summaries.Get(ctx, conversationKey)
	if err != nil {
		return nil, storeError(err)
	}
	return summary, nil
}

// RebuildSummary recomputes one summary from the message log.
func (s *Service) RebuildSummary(ctx context.Context, conversationKey string) (*models.ConversationSummary, error) {
	if _, _, err := identity.SplitKey(conversationKey); err != nil {
		return nil, err
	}
	summary, err := s.summaries.Rebuild(ctx, conversationKey)
	if err != nil {
		return nil, storeError(err)
	}
	return summary, nil
}

// RebuildAll recomputes every summary that has messages behind it and
// returns how many were rebuilt. It stops at the first failure.
func (s *Service) RebuildAll(ctx context.Context) (int, error) {
	keys, err := s.messages.ConversationKeys(ctx)
	if err != nil {
		return 0, storeError(err)
	}

	rebuilt := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if _, err := s.summaries.Rebuild(ctx, key); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return rebuilt, storeError(err)
		}
		rebuilt++
		s.logger.Debug("summary rebuilt", zap.String("conversation_id", key))
	}
	return rebuilt, nil
}

// resolve returns the conversation key and the recipient. The recipient is
// always the other half of the key.
func resolve(in SendInput) (string, string, error) {
	sender, err := identity.Validate(in.SenderID)
	if err != nil {
		return "", "", err
	}

	if in.ConversationID == "" {
		key, err := identity.ConversationKey(sender, in.RecipientID)
		if err != nil {
			return "", "", err
		}
		return key, identity.Normalize(in.RecipientID), nil
	}

	recipient, err := identity.Other(in.ConversationID, sender)
	if err != nil {
		return "", "", err
	}
	if in.RecipientID != "" && identity.Normalize(in.RecipientID) != recipient {
		return "", "", apperror.InvalidIdentifier("recipient does not match conversation")
	}
	return in.ConversationID, recipient, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// storeError passes domain errors through and marks anything else as a
// storage failure the caller may retry.
func storeError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.StoreUnavailable(err)
}
