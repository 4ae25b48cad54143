package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenResolver looks up the push token registered for a participant.
// An empty token means the participant has none.
type TokenResolver interface {
	PushToken(ctx context.Context, participantID string) (string, error)
}

// Worker sends queued notifications to devices. Bursts of messages in the
// same conversation to the same recipient collapse into one push per window.
type Worker struct {
	tokens TokenResolver
	sender Sender
	logger *zap.Logger
	window time.Duration

	recentMu sync.Mutex
	recent   map[string]time.Time // recipient|conversation -> last push
}

func NewWorker(tokens TokenResolver, sender Sender, logger *zap.Logger, window time.Duration) *Worker {
	return &Worker{
		tokens: tokens,
		sender: sender,
		logger: logger,
		window: window,
		recent: make(map[string]time.Time),
	}
}

// Run processes notifications until in is closed or ctx is cancelled.
func (w *Worker) Run(ctx context.Context, in <-chan Notification) {
	w.logger.Info("push worker started")
	defer w.logger.Info("push worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			w.process(ctx, n)
		}
	}
}

func (w *Worker) process(ctx context.Context, n Notification) {
	if w.throttled(n, time.Now()) {
		return
	}

	token, err := w.tokens.PushToken(ctx, n.RecipientID)
	if err != nil {
		w.logger.Warn("push token lookup failed", zap.String("recipient_id", n.RecipientID), zap.Error(err))
		return
	}
	if token == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := w.sender.Send(sendCtx, token, n); err != nil {
		w.logger.Warn("push send failed", zap.String("recipient_id", n.RecipientID), zap.Error(err))
	}
}

func (w *Worker) throttled(n Notification, now time.Time) bool {
	if w.window <= 0 {
		return false
	}
	key := n.RecipientID + "|" + n.Data["conversationId"]

	w.recentMu.Lock()
	defer w.recentMu.Unlock()

	// prune old
	for k, ts := range w.recent {
		if now.Sub(ts) > w.window {
			delete(w.recent, k)
		}
	}
	if _, ok := w.recent[key]; ok {
		return true
	}
	w.recent[key] = now
	return false
}
