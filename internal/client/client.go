// Package client is a Go client for the messaging API, including the
// polling loop a conversation view uses to receive new messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cartalks/backend/internal/apperror"
	"github.com/cartalks/backend/internal/models"
)

// Client is safe for concurrent use. Create one per process and share it.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, licensePlate, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, models.LoginRequest{
		LicensePlate: licensePlate,
		Password:     password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Conversations(ctx context.Context, licensePlate string) ([]models.ConversationSummary, error) {
	var out []models.ConversationSummary
	q := url.Values{"licensePlate": {licensePlate}}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the full history of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return c.MessagesSince(ctx, conversationID, time.Time{})
}

// MessagesSince fetches messages newer than since. A zero since fetches
// everything.
func (c *Client) MessagesSince(ctx context.Context, conversationID string, since time.Time) ([]models.Message, error) {
	q := url.Values{"conversationId": {conversationID}}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	var out []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Send(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID, userID string) (int, error) {
	var out models.MarkReadResponse
	err := c.do(ctx, http.MethodPut, "/api/messages", nil, models.MarkReadRequest{
		ConversationID: conversationID,
		UserID:         userID,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Marked, nil
}

type errorBody struct {
	Error string        `json:"error"`
	Code  apperror.Code `json:"code"`
}

// do sends one request. Non-2xx responses come back as *apperror.AppError
// carrying the server's code, so callers can match on the same sentinels
// as the server.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Code == "" {
			eb.Code = codeForStatus(resp.StatusCode)
		}
		if eb.Error == "" {
			eb.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return apperror.New(eb.Code, eb.Error)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func codeForStatus(status int) apperror.Code {
	switch status {
	case http.StatusBadRequest:
		return apperror.CodeInvalidArgument
	case http.StatusUnauthorized:
		return apperror.CodeUnauthenticated
	case http.StatusForbidden:
		return apperror.CodePermissionDenied
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusTooManyRequests:
		return apperror.CodeRateLimited
	default:
		return apperror.CodeStoreUnavailable
	}
}
