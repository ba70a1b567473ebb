package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"student-rooms/internal/logger"
)

// WebhookConfig configures the HTTP webhook notifier.
type WebhookConfig struct {
	Enabled *bool             `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	// BodyTemplate replaces the default body; {message} is substituted
	// JSON-escaped, without quotes.
	BodyTemplate string        `yaml:"body_template"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Webhook posts messages to an HTTP endpoint. The default body works with
// Discord and Slack incoming webhooks.
type Webhook struct {
	cfg    WebhookConfig
	client *resty.Client
	log    logger.Logger
}

// NewWebhook builds a webhook notifier.
func NewWebhook(cfg WebhookConfig, log logger.Logger) *Webhook {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &Webhook{cfg: cfg, client: client, log: log}
}

func (w *Webhook) Name() string { return TypeWebhook }

func (w *Webhook) Validate() error {
	if w.cfg.URL == "" {
		return fmt.Errorf("%w: webhook requires notifications.webhook.url", ErrInvalidConfig)
	}
	switch w.cfg.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return nil
	default:
		return fmt.Errorf("%w: unsupported webhook method %q", ErrInvalidConfig, w.cfg.Method)
	}
}

func (w *Webhook) Send(ctx context.Context, message string) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	body, err := w.body(message)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	resp, err := w.client.R().SetContext(ctx).SetBody(body).Execute(w.cfg.Method, w.cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: webhook request: %w", ErrSendFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: webhook returned HTTP %d: %.200s", ErrSendFailed, resp.StatusCode(), resp.String())
	}
	w.log.Info("Webhook notification sent", logger.Int("status", resp.StatusCode()))
	return nil
}

func (w *Webhook) body(message string) (any, error) {
	if w.cfg.BodyTemplate == "" {
		return map[string]string{"content": message, "text": message}, nil
	}
	escaped, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	inner := string(escaped[1 : len(escaped)-1])
	return strings.ReplaceAll(w.cfg.BodyTemplate, "{message}", inner), nil
}
