package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the relay server's widget surface. It implements Responder
// over POST /chat.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

var _ Responder = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 95 * time.Second},
	}
}

// BootstrapConfig is the store-connection configuration fetched once at
// widget startup.
type BootstrapConfig struct {
	ConversationID string `json:"conversation_id"`
	Token          string `json:"token"`
	EventsPath     string `json:"events_path"`
	DebounceMS     int    `json:"debounce_ms"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("relay: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return errors.New("relay: " + msg)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// FetchConfig bootstraps the widget: pass the locally stored conversation id
// (empty on first open) and receive the id, session token, and event-stream
// path. The token is retained for subsequent calls.
func (c *Client) FetchConfig(ctx context.Context, conversationID string) (*BootstrapConfig, error) {
	path := "/widget-config"
	if conversationID != "" {
		path += "?conversation_id=" + url.QueryEscape(conversationID)
	}
	var cfg BootstrapConfig
	if err := c.do(ctx, http.MethodGet, path, nil, &cfg); err != nil {
		return nil, err
	}
	c.Token = cfg.Token
	return &cfg, nil
}

// Respond implements Responder against POST /chat.
func (c *Client) Respond(ctx context.Context, conversationID, userName, message string) (string, error) {
	body := map[string]string{
		"userMessage":    message,
		"conversationId": conversationID,
	}
	if userName != "" {
		body["userName"] = userName
	}
	var data struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat", body, &data); err != nil {
		return "", err
	}
	return data.Response, nil
}

// SaveDetails submits the contact form to POST /save-details.
func (c *Client) SaveDetails(ctx context.Context, fullName, phoneNumber, conversationID string) error {
	body := map[string]string{
		"fullName":    fullName,
		"phoneNumber": phoneNumber,
	}
	if conversationID != "" {
		body["conversationId"] = conversationID
	}
	return c.do(ctx, http.MethodPost, "/save-details", body, nil)
}

// StopBot signals POST /stop-bot. Best-effort: the session reacts to the
// resulting status event, not to this call returning.
func (c *Client) StopBot(ctx context.Context, conversationID string) error {
	body := map[string]string{"conversationId": conversationID}
	return c.do(ctx, http.MethodPost, "/stop-bot", body, nil)
}
