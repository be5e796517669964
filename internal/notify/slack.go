package notify

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

const defaultSlackAPI = "https://slack.com/api"

// ErrNotConfigured is returned when no destination is set for a message.
var ErrNotConfigured = errors.New("no destination configured")

// SlackConfig holds Slack destinations. Bot mode (token and channel set)
// posts entries and exits through chat.postMessage; otherwise incoming
// webhooks are used. Alerts always go to AlertWebhook.
type SlackConfig struct {
	EntryWebhook string            `yaml:"entry_webhook"`
	ExitWebhook  string            `yaml:"exit_webhook"`
	AlertWebhook string            `yaml:"alert_webhook"`
	BotToken     string            `yaml:"bot_token"`
	ChannelID    string            `yaml:"channel_id"`
	UserWebhooks map[string]string `yaml:"user_webhooks"`
	Proxy        string            `yaml:"proxy"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// BotMode reports whether chat.postMessage is used.
func (c SlackConfig) BotMode() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// Slack sends messages to Slack.
type Slack struct {
	cfg     SlackConfig
	client  *http.Client
	apiBase string
}

// NewSlack creates a Slack sender.
func NewSlack(cfg SlackConfig) (*Slack, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing slack proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &Slack{
		cfg:     cfg,
		client:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		apiBase: defaultSlackAPI,
	}, nil
}

// Send delivers msg to every destination configured for its kind.
func (s *Slack) Send(ctx context.Context, msg Message) error {
	var errs []error
	sent := false

	switch msg.Kind {
	case KindAlert:
		if s.cfg.AlertWebhook != "" {
			sent = true
			errs = append(errs, s.webhook(ctx, s.cfg.AlertWebhook, msg.Text))
		}
	case KindEntry, KindExit:
		switch {
		case s.cfg.BotMode():
			sent = true
			errs = append(errs, s.postMessage(ctx, msg.Text))
		case msg.Kind == KindEntry && s.cfg.EntryWebhook != "":
			sent = true
			errs = append(errs, s.webhook(ctx, s.cfg.EntryWebhook, msg.Text))
		case msg.Kind == KindExit && s.cfg.ExitWebhook != "":
			sent = true
			errs = append(errs, s.webhook(ctx, s.cfg.ExitWebhook, msg.Text))
		}
		if hook := s.cfg.UserWebhooks[msg.User]; hook != "" {
			sent = true
			errs = append(errs, s.webhook(ctx, hook, msg.Text))
		}
	default:
		return fmt.Errorf("unsupported message kind %q", msg.Kind)
	}

	if !sent {
		return ErrNotConfigured
	}
	return errors.Join(errs...)
}

func (s *Slack) webhook(ctx context.Context, hook, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := s.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("webhook error (status %d): %s", status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

func (s *Slack) postMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"channel": s.cfg.ChannelID, "text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.cfg.BotToken)

	respBody, _, err := s.do(req)
	if err != nil {
		return err
	}
	var res postMessageResponse
	if err := json.Unmarshal(respBody, &res); err != nil {
		return fmt.Errorf("invalid chat.postMessage response: %w", err)
	}
	if !res.OK {
		return fmt.Errorf("chat.postMessage failed: %s", res.Error)
	}
	return nil
}

func (s *Slack) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
