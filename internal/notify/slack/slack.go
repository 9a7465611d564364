// Package slack delivers replies through the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const (
	defaultBaseURL = "https://slack.com/api"
	maxBodyLog     = 2048
)

// Config captures the subset of Slack Web API behaviour we need.
type Config struct {
	BotToken string
	BaseURL  string
	Timeout  time.Duration
	Client   *http.Client
}

// Client posts ephemeral messages and joins channels.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a Slack Web API client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("slack bot token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  hc,
		logger:  logger,
	}, nil
}

type ephemeralPayload struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
}

type joinPayload struct {
	Channel string `json:"channel"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Notify sends one chat.postEphemeral call and returns its HTTP status. It never retries.
func (c *Client) Notify(ctx context.Context, req hours.NotificationRequest) (int, error) {
	status, body, err := c.call(ctx, "chat.postEphemeral", ephemeralPayload{
		Channel: req.ChannelID,
		User:    req.UserID,
		Text:    req.Text,
	})
	if err != nil {
		return status, fmt.Errorf("%w: %w", hours.ErrNotifyFailed, err)
	}
	c.logger.Info("slack api response",
		zap.String("method", "chat.postEphemeral"),
		zap.Int("status_code", status),
		zap.String("body", truncate(body)),
	)
	if status < 200 || status >= 300 {
		return status, fmt.Errorf("%w: chat.postEphemeral returned %d", hours.ErrNotifyFailed, status)
	}
	return status, nil
}

// JoinChannel calls conversations.join. A non-2xx status or an ok=false body is reported as ErrJoinFailed.
func (c *Client) JoinChannel(ctx context.Context, channelID string) (int, error) {
	status, body, err := c.call(ctx, "conversations.join", joinPayload{Channel: channelID})
	if err != nil {
		return status, fmt.Errorf("%w: %w", hours.ErrJoinFailed, err)
	}
	c.logger.Debug("slack api response",
		zap.String("method", "conversations.join"),
		zap.Int("status_code", status),
		zap.String("body", truncate(body)),
	)
	if status != http.StatusOK {
		return status, fmt.Errorf("%w: conversations.join returned %d", hours.ErrJoinFailed, status)
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return status, fmt.Errorf("%w: decode conversations.join response: %w", hours.ErrJoinFailed, err)
	}
	if !parsed.OK {
		return status, fmt.Errorf("%w: %s", hours.ErrJoinFailed, parsed.Error)
	}
	return status, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("slack request failed: %w", err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return resp.StatusCode, nil, fmt.Errorf("read slack response: %w", readErr)
	}
	if closeErr != nil {
		return resp.StatusCode, respBody, fmt.Errorf("close response body: %w", closeErr)
	}
	return resp.StatusCode, respBody, nil
}

func truncate(body []byte) string {
	if len(body) <= maxBodyLog {
		return string(body)
	}
	return string(body[:maxBodyLog]) + "..."
}
