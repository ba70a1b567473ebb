// Package notifier delivers alert messages to stdout, webhooks, Telegram or
// the openclaw CLI.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"student-rooms/internal/logger"
)

var (
	// ErrSendFailed wraps every delivery failure.
	ErrSendFailed = errors.New("notification send failed")
	// ErrDisabled is returned by a notifier turned off in config.
	ErrDisabled = errors.New("notifier disabled")
	// ErrUnknownType is returned by New for unsupported types.
	ErrUnknownType = errors.New("unknown notifier type")
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid notifier config")
)

// Notifier types.
const (
	TypeStdout   = "stdout"
	TypeWebhook  = "webhook"
	TypeTelegram = "telegram"
	TypeOpenClaw = "openclaw"
	TypeNone     = "none"
)

// Types lists the accepted notifier types.
var Types = []string{TypeStdout, TypeWebhook, TypeTelegram, TypeOpenClaw, TypeNone}

// Notifier sends one message.
type Notifier interface {
	Name() string
	Send(ctx context.Context, message string) error
	// Validate reports configuration problems without sending anything.
	Validate() error
}

// Config selects and configures a notifier.
type Config struct {
	Type     string         `yaml:"type"`
	Stdout   StdoutConfig   `yaml:"stdout"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
	OpenClaw OpenClawConfig `yaml:"openclaw"`
}

// StdoutConfig configures the console notifier.
type StdoutConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// New builds the configured notifier. out is used by the stdout notifier.
// A backend whose enabled flag is false yields a Disabled notifier.
func New(cfg Config, out io.Writer, log logger.Logger) (Notifier, error) {
	log = log.With(logger.Component("notifier"))
	switch strings.ToLower(cfg.Type) {
	case "", TypeStdout:
		if isOff(cfg.Stdout.Enabled) {
			return NewDisabled("stdout notifier is disabled in config"), nil
		}
		return NewStdout(out), nil
	case TypeWebhook:
		if isOff(cfg.Webhook.Enabled) {
			return NewDisabled("webhook notifier is disabled in config"), nil
		}
		return NewWebhook(cfg.Webhook, log), nil
	case TypeTelegram:
		if isOff(cfg.Telegram.Enabled) {
			return NewDisabled("telegram notifier is disabled in config"), nil
		}
		return NewTelegram(cfg.Telegram, log), nil
	case TypeOpenClaw:
		if isOff(cfg.OpenClaw.Enabled) {
			return NewDisabled("openclaw notifier is disabled in config"), nil
		}
		return NewOpenClaw(cfg.OpenClaw, log), nil
	case TypeNone:
		return NewDisabled("notifications are turned off"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

func isOff(enabled *bool) bool {
	return enabled != nil && !*enabled
}

// Disabled is a notifier that refuses to send.
type Disabled struct {
	reason string
}

// NewDisabled returns a Disabled notifier explaining why.
func NewDisabled(reason string) *Disabled {
	return &Disabled{reason: reason}
}

func (d *Disabled) Name() string { return TypeNone }

func (d *Disabled) Send(context.Context, string) error {
	return fmt.Errorf("%w: %s", ErrDisabled, d.reason)
}

func (d *Disabled) Validate() error { return nil }
