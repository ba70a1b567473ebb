package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/monitor"
	"student-rooms/internal/scan"
)

type fakeSender struct {
	mu         sync.Mutex
	sent       []tgbotapi.MessageConfig
	rejectHTML bool
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := c.(tgbotapi.MessageConfig)
	s.sent = append(s.sent, msg)
	if s.rejectHTML && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *fakeSender) messages() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), s.sent...)
}

type fakeWatcher struct {
	state  monitor.State
	report *monitor.CycleReport

	mu     sync.Mutex
	runErr error
	runs   int
	// release, when set, holds RunCycle until it is closed.
	release chan struct{}
}

func (w *fakeWatcher) State() monitor.State { return w.state }

func (w *fakeWatcher) LastReport() (monitor.CycleReport, bool) {
	if w.report == nil {
		return monitor.CycleReport{}, false
	}
	return *w.report, true
}

func (w *fakeWatcher) RunCycle(context.Context) (monitor.CycleReport, error) {
	w.mu.Lock()
	w.runs++
	runErr, release := w.runErr, w.release
	w.mu.Unlock()

	if release != nil {
		<-release
	}
	if runErr != nil {
		return monitor.CycleReport{}, runErr
	}
	return *w.report, nil
}

func match(property, room string, weekly int64) models.RoomOption {
	start := models.NewDate(2026, time.September, 5)
	end := models.NewDate(2027, time.January, 30)
	return models.RoomOption{
		Provider:     "yugo",
		PropertyName: property,
		PropertySlug: strings.ToLower(property),
		RoomType:     room,
		PriceWeekly:  decimal.NewNullDecimal(decimal.NewFromInt(weekly)),
		StartDate:    &start,
		EndDate:      &end,
		AcademicYear: "2026-27",
		OptionName:   "Semester 1",
		BookingURL:   "https://yugo.com/en-gb/global/ireland/dublin/" + strings.ToLower(property),
	}
}

func sampleReport() *monitor.CycleReport {
	started := time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC)
	top := match("Kavanagh Court", "Gold <Ensuite>", 310)
	other := match("Dorset Point", "Studio", 400)
	return &monitor.CycleReport{
		ID:         "c1",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Skipped:    []string{"aparto"},
		Result: scan.Result{
			MatchCount: 2,
			Matches:    []models.RoomOption{top, other},
			Errors:     []scan.ProviderError{{Provider: "yugo", Kind: "upstream_unavailable", Message: "HTTP 503"}},
			Scanned:    []string{"yugo"},
		},
		NewMatches: []models.RoomOption{top},
		Notified:   true,
	}
}

func newTestBot(t *testing.T, w *fakeWatcher, chatID string) (*Bot, *fakeSender) {
	t.Helper()
	b, err := New(nil, w, chatID, logger.NewNop())
	require.NoError(t, err)
	s := &fakeSender{}
	b.sender = s
	return b, s
}

func incoming(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, "/status", parseCommand("/Status@rooms_bot now"))
	assert.Equal(t, "/help", parseCommand("  /help"))
	assert.Equal(t, "", parseCommand("   "))
	assert.Equal(t, "@x", parseCommand("@x"))
}

func TestNew_RejectsNonNumericChat(t *testing.T) {
	_, err := New(nil, &fakeWatcher{}, "@channel", logger.NewNop())
	assert.ErrorIs(t, err, ErrInvalidChatID)
}

func TestHandle_Authorisation(t *testing.T) {
	b, s := newTestBot(t, &fakeWatcher{state: monitor.StateIdle}, "100")

	b.handle(context.Background(), incoming(200, "/help"))
	b.handle(context.Background(), incoming(200, "/status"))
	b.handle(context.Background(), incoming(100, "/status"))

	sent := s.messages()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Text, "/matches")
	assert.Equal(t, "You are not authorised to use this bot.", sent[1].Text)
	assert.Contains(t, sent[2].Text, "No cycle has completed yet.")
}

func TestHandle_UnknownAndEmpty(t *testing.T) {
	b, s := newTestBot(t, &fakeWatcher{}, "")
	b.handle(context.Background(), incoming(1, ""))
	b.handle(context.Background(), incoming(1, "/add something"))

	sent := s.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Unknown command")
	assert.Empty(t, sent[0].ParseMode)
}

func TestHandle_HTMLFallback(t *testing.T) {
	b, s := newTestBot(t, &fakeWatcher{state: monitor.StateSleeping, report: sampleReport()}, "")
	s.rejectHTML = true

	b.handle(context.Background(), incoming(1, "/matches"))

	sent := s.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, tgbotapi.ModeHTML, sent[0].ParseMode)
	assert.Empty(t, sent[1].ParseMode)
	assert.Equal(t, sent[0].Text, sent[1].Text)
}

func TestHandle_Scan(t *testing.T) {
	w := &fakeWatcher{state: monitor.StateIdle, report: sampleReport()}
	b, s := newTestBot(t, w, "")

	b.handle(context.Background(), incoming(1, "/scan"))
	b.scans.Wait()
	w.mu.Lock()
	w.runErr = monitor.ErrCycleInProgress
	w.mu.Unlock()
	b.handle(context.Background(), incoming(1, "/scan"))
	b.scans.Wait()

	assert.Equal(t, 2, w.runs)
	sent := s.messages()
	require.Len(t, sent, 4)
	assert.Contains(t, sent[1].Text, "<b>Matches:</b> 2 (1 new)")
	assert.Contains(t, sent[3].Text, "already running")
}

func TestHandle_ScanRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	w := &fakeWatcher{state: monitor.StateSleeping, report: sampleReport(), release: release}
	b, s := newTestBot(t, w, "")

	b.handle(context.Background(), incoming(1, "/scan"))
	b.handle(context.Background(), incoming(1, "/status"))

	sent := s.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Text, "Scanning now")
	assert.Contains(t, sent[1].Text, "<b>State:</b> SLEEPING")

	close(release)
	b.scans.Wait()
	sent = s.messages()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[2].Text, "<b>Matches:</b> 2 (1 new)")
}

func TestRenderStatus(t *testing.T) {
	got := RenderStatus(monitor.StateSleeping, *sampleReport(), true)
	want := strings.Join([]string{
		"📡 <b>State:</b> SLEEPING",
		"🕐 <b>Last cycle:</b> 01/07/2026 12:00 UTC (1.5s)",
		"📋 <b>Matches:</b> 2 (1 new)",
		"🔍 Providers: yugo",
		"⏸ Backing off: aparto",
		"⚠️ yugo: upstream_unavailable",
		"🔔 Alert sent",
	}, "\n")
	assert.Equal(t, want, got)

	failed := *sampleReport()
	failed.Notified = false
	failed.NotifyError = "webhook returned <500>"
	failed.FlushError = "disk full"
	got = RenderStatus(monitor.StateIdle, failed, true)
	assert.Contains(t, got, "❌ Alert failed: webhook returned &lt;500&gt;")
	assert.Contains(t, got, "💾 Ledger flush failed: disk full")
}

func TestRenderMatches(t *testing.T) {
	got := RenderMatches(*sampleReport(), true)
	assert.Contains(t, got, "📋 <b>2 matches</b>")
	assert.Contains(t, got, "1. <b>Kavanagh Court</b> (YUGO) 🆕")
	assert.Contains(t, got, "   Gold &lt;Ensuite&gt; | €310/week")
	assert.Contains(t, got, "   2026-09-05 → 2027-01-30 | Semester 1")
	assert.Contains(t, got, "2. <b>Dorset Point</b> (YUGO)\n")
	assert.NotContains(t, got, "more")

	assert.Equal(t, "No cycle has completed yet.", RenderMatches(monitor.CycleReport{}, false))
	assert.Equal(t, "📋 No matches in the last cycle.", RenderMatches(monitor.CycleReport{}, true))
}

func TestRenderMatches_Truncates(t *testing.T) {
	report := monitor.CycleReport{}
	for i := range maxListed + 3 {
		report.Result.Matches = append(report.Result.Matches, match("Property", "Room "+string(rune('A'+i)), 300))
	}
	got := RenderMatches(report, true)
	assert.Contains(t, got, "…and 3 more")
	assert.NotContains(t, got, "11. ")
}
