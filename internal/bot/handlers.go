package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/monitor"
)

// maxListed caps /matches so the reply stays under Telegram's limit.
const maxListed = 10

const timeLayout = "02/01/2006 15:04 MST"

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func (b *Bot) handle(ctx context.Context, message *tgbotapi.Message) {
	command := parseCommand(message.Text)
	if command == "" {
		return
	}
	chatID := message.Chat.ID

	public := command == "/start" || command == "/help"
	if !public && !b.authorized(chatID) {
		b.log.Warn("Rejected command from unauthorised chat", logger.String("command", command), logger.Int("chat_id", int(chatID)))
		b.reply(chatID, "You are not authorised to use this bot.", false)
		return
	}

	switch command {
	case "/start", "/help":
		b.reply(chatID, RenderHelp(), true)
	case "/status":
		report, ok := b.watcher.LastReport()
		b.reply(chatID, RenderStatus(b.watcher.State(), report, ok), true)
	case "/matches":
		report, ok := b.watcher.LastReport()
		b.reply(chatID, RenderMatches(report, ok), true)
	case "/scan":
		b.reply(chatID, "🔎 Scanning now…", false)
		b.scans.Add(1)
		go func() {
			defer b.scans.Done()
			b.handleScan(ctx, chatID)
		}()
	default:
		b.reply(chatID, "Unknown command. Use /help to see what I can do.", false)
	}
}

func (b *Bot) handleScan(ctx context.Context, chatID int64) {
	report, err := b.watcher.RunCycle(ctx)
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		b.reply(chatID, "⏳ A scan is already running. Try /status in a moment.", false)
	case err != nil:
		b.reply(chatID, "❌ Scan failed: "+err.Error(), false)
	default:
		b.reply(chatID, RenderStatus(b.watcher.State(), report, true), true)
	}
}

// reply sends text, retrying without formatting if Telegram rejects the HTML.
func (b *Bot) reply(chatID int64, text string, html bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.sender.Send(msg); err != nil {
		if !html {
			b.log.Error("Failed to send reply", logger.Err(err))
			return
		}
		b.log.Warn("HTML reply rejected, retrying as plain text", logger.Err(err))
		msg.ParseMode = ""
		if _, err := b.sender.Send(msg); err != nil {
			b.log.Error("Failed to send plain reply", logger.Err(err))
		}
	}
}

// RenderHelp lists the available commands.
func RenderHelp() string {
	return `🏠 <b>Student Rooms watcher</b>

<b>/status</b> - State of the watch loop and the last cycle
<b>/matches</b> - Matches found by the last cycle
<b>/scan</b> - Run a cycle now
<b>/help</b> - Show this message`
}

// RenderStatus summarises the watch loop state and the last cycle.
func RenderStatus(state monitor.State, report monitor.CycleReport, ok bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📡 <b>State:</b> %s\n", state)
	if !ok {
		sb.WriteString("No cycle has completed yet.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "🕐 <b>Last cycle:</b> %s (%s)\n",
		report.FinishedAt.Format(timeLayout),
		report.FinishedAt.Sub(report.StartedAt).Round(100*time.Millisecond))
	fmt.Fprintf(&sb, "📋 <b>Matches:</b> %d (%d new)\n", report.Result.MatchCount, len(report.NewMatches))
	if len(report.Result.Scanned) > 0 {
		fmt.Fprintf(&sb, "🔍 Providers: %s\n", escapeHTML(strings.Join(report.Result.Scanned, ", ")))
	}
	if len(report.Skipped) > 0 {
		fmt.Fprintf(&sb, "⏸ Backing off: %s\n", escapeHTML(strings.Join(report.Skipped, ", ")))
	}
	for _, e := range report.Result.Errors {
		fmt.Fprintf(&sb, "⚠️ %s: %s\n", escapeHTML(e.Provider), escapeHTML(e.Kind))
	}
	switch {
	case report.Notified:
		sb.WriteString("🔔 Alert sent\n")
	case report.NotifyError != "":
		fmt.Fprintf(&sb, "❌ Alert failed: %s\n", escapeHTML(report.NotifyError))
	}
	if report.FlushError != "" {
		fmt.Fprintf(&sb, "💾 Ledger flush failed: %s\n", escapeHTML(report.FlushError))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderMatches lists the last cycle's matches, best first.
func RenderMatches(report monitor.CycleReport, ok bool) string {
	if !ok {
		return "No cycle has completed yet."
	}
	matches := report.Result.Matches
	if len(matches) == 0 {
		return "📋 No matches in the last cycle."
	}

	newKeys := make(map[string]bool, len(report.NewMatches))
	for _, m := range report.NewMatches {
		newKeys[m.DedupKey()] = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>%d matches</b>\n", len(matches))
	for i, m := range matches[:min(len(matches), maxListed)] {
		mark := ""
		if newKeys[m.DedupKey()] {
			mark = " 🆕"
		}
		fmt.Fprintf(&sb, "\n%d. <b>%s</b> (%s)%s\n", i+1, escapeHTML(m.PropertyName), strings.ToUpper(m.Provider), mark)
		fmt.Fprintf(&sb, "   %s | %s\n", escapeHTML(m.RoomType), escapeHTML(m.PriceText()))
		fmt.Fprintf(&sb, "   %s → %s | %s\n", dateText(m.StartDate), dateText(m.EndDate), escapeHTML(m.OptionName))
		if m.BookingURL != "" {
			fmt.Fprintf(&sb, "   🔗 %s\n", escapeHTML(m.BookingURL))
		}
	}
	if rest := len(matches) - maxListed; rest > 0 {
		fmt.Fprintf(&sb, "\n…and %d more\n", rest)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func dateText(d *models.Date) string {
	if d == nil {
		return "?"
	}
	return d.String()
}
