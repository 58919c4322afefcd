// Package slack implements the output sink: a minimal Slack Web API client.
//
// Only chat.postMessage is needed; everything the daemon tells operators
// goes through here (run summaries, reports, and the logx Slack sink).
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

	"golang.org/x/time/rate"

	logx "tablero/pkg/logx"
)

const defaultBaseURL = "https://slack.com/api"

type Config struct {
	Token      string
	BaseURL    string
	RatePerSec int
}

type Client struct {
	hc      *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		hc:      &http.Client{Timeout: 15 * time.Second},
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Enabled reports whether the client has a token and can send at all.
func (c *Client) Enabled() bool { return c != nil && c.token != "" }

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SendText posts a plain-text message to a channel.
func (c *Client) SendText(ctx context.Context, channel, text string) error {
	if !c.Enabled() {
		return errors.New("slack: no token configured")
	}
	if strings.TrimSpace(channel) == "" {
		return errors.New("slack: channel is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(postMessageRequest{Channel: channel, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("slack: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: status %d", resp.StatusCode)
	}
	var out apiResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("slack: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("slack: api error: %s", out.Error)
	}
	return nil
}
