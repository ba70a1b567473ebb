// Package bot answers Telegram commands about the running watch loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"student-rooms/internal/logger"
	"student-rooms/internal/monitor"
)

// ErrInvalidChatID is returned when the authorised chat id is not numeric.
var ErrInvalidChatID = errors.New("authorised chat id must be numeric")

// Watcher is the part of the watch loop the bot reports on.
type Watcher interface {
	State() monitor.State
	LastReport() (monitor.CycleReport, bool)
	RunCycle(ctx context.Context) (monitor.CycleReport, error)
}

// Sender is the part of the Bot API the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot dispatches commands received by long polling.
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	watcher Watcher
	log     logger.Logger

	authorizedChatID int64
	hasAuth          bool

	// scans tracks /scan cycles running in the background.
	scans sync.WaitGroup
}

// New builds a Bot. An empty chatID leaves every command open; otherwise
// only that chat may use commands other than /start and /help.
func New(api *tgbotapi.BotAPI, watcher Watcher, chatID string, log logger.Logger) (*Bot, error) {
	b := &Bot{api: api, sender: api, watcher: watcher, log: log.With(logger.Component("bot"))}
	if chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
		}
		b.authorizedChatID, b.hasAuth = id, true
	}
	return b, nil
}

// Listen polls for updates until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	defer b.scans.Wait()

	b.log.Info("Listening for commands", logger.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handle(ctx, update.Message)
			}
		}
	}
}

// parseCommand lowercases the first word and strips a trailing @botname.
func parseCommand(text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}
	command := strings.ToLower(parts[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	return command
}

func (b *Bot) authorized(chatID int64) bool {
	return !b.hasAuth || chatID == b.authorizedChatID
}
