package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultExpoURL is Expo's push send endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// Sender delivers one notification to one device token.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) error
}

type ExpoSender struct {
	url    string
	client *http.Client
}

func NewExpoSender(url string) *ExpoSender {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoSender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Sound string            `json:"sound"`
	Data  map[string]string `json:"data,omitempty"`
}

func (s *ExpoSender) Send(ctx context.Context, token string, n Notification) error {
	body, err := json.Marshal(expoMessage{
		To:    token,
		Title: n.Title,
		Body:  n.Body,
		Sound: "default",
		Data:  n.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
