package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"student-rooms/internal/logger"
)

// telegramMaxRunes is Telegram's message length limit.
const telegramMaxRunes = 4096

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	// ChatID is numeric or an @channel username.
	ChatID    string `yaml:"chat_id"`
	ParseMode string `yaml:"parse_mode"`
	// APIEndpoint overrides tgbotapi.APIEndpoint.
	APIEndpoint string `yaml:"api_endpoint"`
}

// Telegram sends messages through the Bot API.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	log    logger.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram builds a Telegram notifier. The bot is authorised on the
// first send.
func NewTelegram(cfg TelegramConfig, log logger.Logger) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}, log: log}
}

func (t *Telegram) Name() string { return TypeTelegram }

func (t *Telegram) Validate() error {
	if t.cfg.BotToken == "" {
		return fmt.Errorf("%w: telegram requires notifications.telegram.bot_token", ErrInvalidConfig)
	}
	if t.cfg.ChatID == "" {
		return fmt.Errorf("%w: telegram requires notifications.telegram.chat_id", ErrInvalidConfig)
	}
	if !strings.HasPrefix(t.cfg.ChatID, "@") {
		if _, err := strconv.ParseInt(t.cfg.ChatID, 10, 64); err != nil {
			return fmt.Errorf("%w: telegram chat_id %q is neither numeric nor @channel", ErrInvalidConfig, t.cfg.ChatID)
		}
	}
	return nil
}

// API returns the authorised bot, connecting on first use.
func (t *Telegram) API() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.BotToken, t.cfg.APIEndpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram authorisation: %w", err)
	}
	t.log.Debug("Telegram bot authorised", logger.String("username", bot.Self.UserName))
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Send(ctx context.Context, message string) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	bot, err := t.API()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	msg := t.newMessage(truncateRunes(message, telegramMaxRunes))
	msg.ParseMode = t.cfg.ParseMode
	if _, err := bot.Send(msg); err != nil {
		if msg.ParseMode == "" {
			return fmt.Errorf("%w: telegram: %w", ErrSendFailed, err)
		}
		t.log.Warn("Telegram rejected formatted message, retrying as plain text", logger.Err(err))
		msg.ParseMode = ""
		if _, err := bot.Send(msg); err != nil {
			return fmt.Errorf("%w: telegram: %w", ErrSendFailed, err)
		}
	}
	t.log.Info("Telegram notification sent", logger.String("chat_id", t.cfg.ChatID))
	return nil
}

func (t *Telegram) newMessage(text string) tgbotapi.MessageConfig {
	if strings.HasPrefix(t.cfg.ChatID, "@") {
		return tgbotapi.NewMessageToChannel(t.cfg.ChatID, text)
	}
	id, _ := strconv.ParseInt(t.cfg.ChatID, 10, 64)
	return tgbotapi.NewMessage(id, text)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
