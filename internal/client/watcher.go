package client

import (
	"context"
	"sync"
	"time"

	"github.com/cartalks/backend/internal/identity"
	"github.com/cartalks/backend/internal/models"
)

// Watcher follows one conversation for one participant. Each Fetch hands
// new messages to the callback in order and marks them read when the other
// side sent any.
//
// Marking read covers the whole conversation, so a message that lands
// between the fetch and the mark is stored as read before the callback sees
// it. The next Fetch still delivers it, with Read set.
type Watcher struct {
	client         *Client
	conversationID string
	self           string
	onMessage      func(models.Message)

	mu   sync.Mutex
	last time.Time
}

// NewWatcher resolves the conversation key locally, the same way the server
// does.
func NewWatcher(client *Client, self, other string, onMessage func(models.Message)) (*Watcher, error) {
	key, err := identity.ConversationKey(self, other)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		client:         client,
		conversationID: key,
		self:           identity.Normalize(self),
		onMessage:      onMessage,
	}, nil
}

func (w *Watcher) ConversationID() string {
	return w.conversationID
}

// Fetch is meant to be driven by a Poller.
func (w *Watcher) Fetch(ctx context.Context) error {
	w.mu.Lock()
	since := w.last
	w.mu.Unlock()

	msgs, err := w.client.MessagesSince(ctx, w.conversationID, since)
	if err != nil {
		return err
	}

	received := false
	for _, m := range msgs {
		w.onMessage(m)
		if m.SenderID != w.self && !m.Read {
			received = true
		}
		since = m.Timestamp
	}

	w.mu.Lock()
	if since.After(w.last) {
		w.last = since
	}
	w.mu.Unlock()

	if received {
		if _, err := w.client.MarkRead(ctx, w.conversationID, w.self); err != nil {
			return err
		}
	}
	return nil
}
