package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"student-rooms/internal/logger"
)

// OpenClaw modes.
const (
	OpenClawModeMessage = "message"
	OpenClawModeAgent   = "agent"
)

// OpenClawConfig configures the openclaw CLI notifier.
type OpenClawConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Mode    string `yaml:"mode"`
	Channel string `yaml:"channel"`
	Target  string `yaml:"target"`
	// Binary defaults to "openclaw" on PATH.
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// OpenClaw delivers messages by running the openclaw CLI.
type OpenClaw struct {
	cfg OpenClawConfig
	run commandRunner
	log logger.Logger
}

// NewOpenClaw builds an openclaw notifier.
func NewOpenClaw(cfg OpenClawConfig, log logger.Logger) *OpenClaw {
	if cfg.Mode == "" {
		cfg.Mode = OpenClawModeMessage
	}
	if cfg.Channel == "" {
		cfg.Channel = "telegram"
	}
	if cfg.Binary == "" {
		cfg.Binary = "openclaw"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &OpenClaw{cfg: cfg, run: execRunner, log: log}
}

func (o *OpenClaw) Name() string { return TypeOpenClaw }

func (o *OpenClaw) Validate() error {
	if o.cfg.Target == "" {
		return fmt.Errorf("%w: openclaw requires notifications.openclaw.target", ErrInvalidConfig)
	}
	if o.cfg.Mode != OpenClawModeMessage && o.cfg.Mode != OpenClawModeAgent {
		return fmt.Errorf("%w: notifications.openclaw.mode must be %q or %q", ErrInvalidConfig, OpenClawModeMessage, OpenClawModeAgent)
	}
	return nil
}

func (o *OpenClaw) args(message string) []string {
	if o.cfg.Mode == OpenClawModeAgent {
		return []string{"agent",
			"--message", message,
			"--deliver",
			"--reply-channel", o.cfg.Channel,
			"--reply-to", o.cfg.Target,
		}
	}
	return []string{"message", "send",
		"--channel", o.cfg.Channel,
		"--target", o.cfg.Target,
		"--message", message,
	}
}

func (o *OpenClaw) Send(ctx context.Context, message string) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	out, err := o.run(ctx, o.cfg.Binary, o.args(message)...)
	if err != nil {
		return fmt.Errorf("%w: openclaw %s: %w: %.200s", ErrSendFailed, o.cfg.Mode, err, strings.TrimSpace(string(out)))
	}
	o.log.Info("OpenClaw notification sent", logger.String("mode", o.cfg.Mode), logger.String("target", o.cfg.Target))
	return nil
}
