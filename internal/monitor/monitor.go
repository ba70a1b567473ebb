// Package monitor runs scans periodically and alerts on options not seen
// before.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"student-rooms/internal/ledger"
	"student-rooms/internal/logger"
	"student-rooms/internal/matching"
	"student-rooms/internal/models"
	"student-rooms/internal/notifier"
	"student-rooms/internal/provider"
	"student-rooms/internal/scan"
)

// State is the watch loop's current phase.
type State string

const (
	StateIdle       State = "IDLE"
	StateScanning   State = "SCANNING"
	StateEvaluating State = "EVALUATING"
	StateNotifying  State = "NOTIFYING"
	StateSleeping   State = "SLEEPING"
	StateStopped    State = "STOPPED"
)

// ErrCycleInProgress is returned when a cycle is requested while another runs.
var ErrCycleInProgress = errors.New("watch cycle already in progress")

// Defaults.
const (
	DefaultInterval     = 300 * time.Second
	MinInterval         = 5 * time.Second
	DefaultJitter       = 30 * time.Second
	DefaultBackoffBase  = 30 * time.Second
	DefaultBackoffMax   = 600 * time.Second
	DefaultFlushTimeout = 10 * time.Second
)

// Config controls what is watched and how often.
type Config struct {
	Location   models.Location
	Spec       matching.Spec
	Filters    matching.Filters
	AllOptions bool

	Interval time.Duration
	Jitter   time.Duration
	// AutoProbe runs the booking probe for the top new match before notifying.
	AutoProbe bool

	BackoffBase  time.Duration
	BackoffMax   time.Duration
	FlushTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	c.Interval = max(c.Interval, MinInterval)
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	return c
}

// Deps are the collaborators a Monitor needs.
type Deps struct {
	Registry *provider.Registry
	// Providers names the providers to watch; empty means all registered.
	Providers []string
	Scanner   *scan.Orchestrator
	Store     ledger.Store
	Notifier  notifier.Notifier
	Logger    logger.Logger
	Metrics   *Metrics
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	ID          string                 `json:"id"`
	StartedAt   time.Time              `json:"startedAt"`
	FinishedAt  time.Time              `json:"finishedAt"`
	Skipped     []string               `json:"skipped,omitempty"`
	Result      scan.Result            `json:"result"`
	NewMatches  []models.RoomOption    `json:"newMatches"`
	Notified    bool                   `json:"notified"`
	NotifyError string                 `json:"notifyError,omitempty"`
	FlushError  string                 `json:"flushError,omitempty"`
	Booking     *models.BookingContext `json:"booking,omitempty"`
	Cancelled   bool                   `json:"cancelled,omitempty"`
}

type backoff struct {
	failures int
	until    time.Time
}

// Monitor is the watch loop.
type Monitor struct {
	cfg       Config
	registry  *provider.Registry
	providers []provider.Provider
	scanner   *scan.Orchestrator
	store     ledger.Store
	notifier  notifier.Notifier
	log       logger.Logger
	metrics   *Metrics

	now       func() time.Time
	randFloat func() float64

	running atomic.Bool

	mu      sync.RWMutex
	state   State
	last    *CycleReport
	backoff map[string]*backoff
}

// New builds a Monitor.
func New(cfg Config, deps Deps) (*Monitor, error) {
	if deps.Registry == nil || deps.Scanner == nil || deps.Store == nil || deps.Notifier == nil {
		return nil, errors.New("monitor: registry, scanner, store and notifier are required")
	}
	providers, err := deps.Registry.Select(deps.Providers...)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Monitor{
		cfg:       cfg.withDefaults(),
		registry:  deps.Registry,
		providers: providers,
		scanner:   deps.Scanner,
		store:     deps.Store,
		notifier:  deps.Notifier,
		log:       log.With(logger.Component("monitor")),
		metrics:   metrics,
		now:       time.Now,
		randFloat: rand.Float64,
		state:     StateIdle,
		backoff:   map[string]*backoff{},
	}, nil
}

// State returns the current phase.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// markSleeping leaves the state alone while a cycle started elsewhere is
// running; that cycle restores the previous state when it ends.
func (m *Monitor) markSleeping() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running.Load() {
		m.state = StateSleeping
	}
}

// LastReport returns the most recent cycle report, if any.
func (m *Monitor) LastReport() (CycleReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return CycleReport{}, false
	}
	return *m.last, true
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately. Provider and notifier failures never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("Watch loop started",
		logger.String("location", m.cfg.Location.String()),
		logger.Duration("interval", m.cfg.Interval),
		logger.Duration("jitter", m.cfg.Jitter))
	defer m.setState(StateStopped)

	for {
		_, err := m.RunCycle(ctx)
		switch {
		case errors.Is(err, ErrCycleInProgress):
			m.log.Debug("Cycle already running, skipping this tick")
		case err != nil && !errors.Is(err, context.Canceled):
			m.log.Warn("Watch cycle ended with error", logger.Err(err))
		}
		if ctx.Err() != nil {
			m.log.Info("Watch loop stopped")
			return nil
		}

		wait := m.NextSleep()
		m.markSleeping()
		m.log.Debug("Sleeping until next cycle", logger.Duration("sleep", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Info("Watch loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// NextSleep returns interval ± uniform(0, jitter), never below MinInterval.
func (m *Monitor) NextSleep() time.Duration {
	d := m.cfg.Interval
	if m.cfg.Jitter > 0 {
		offset := (m.randFloat()*2 - 1) * float64(m.cfg.Jitter)
		d += time.Duration(offset)
	}
	return max(d, MinInterval)
}

// RunCycle performs one scan, evaluate, notify and flush pass. When ctx is
// cancelled mid-scan the partial results are still evaluated, and the
// notification and flush run on a short context detached from ctx. On
// return the state goes back to what it was before the cycle, or Stopped
// if the cycle was cancelled.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	if !m.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer m.running.Store(false)
	prev := m.State()

	report := CycleReport{ID: uuid.NewString(), StartedAt: m.now().UTC()}
	log := m.log.With(logger.String("cycle_id", report.ID))

	m.setState(StateScanning)
	active := m.activeProviders(&report, log)
	report.Result = m.scanner.Run(ctx, scan.Request{
		Providers:  active,
		Location:   m.cfg.Location,
		Spec:       m.cfg.Spec,
		Filters:    m.cfg.Filters,
		AllOptions: m.cfg.AllOptions,
	})
	m.recordProviderHealth(active, report.Result, log)

	m.setState(StateEvaluating)
	report.NewMatches = m.newMatches(report.Result.Matches)
	log.Info("Cycle evaluated",
		logger.Int("matches", report.Result.MatchCount),
		logger.Int("new", len(report.NewMatches)),
		logger.Int("provider_errors", len(report.Result.Errors)))

	// Delivery and persistence survive cancellation of the scan.
	finishCtx := ctx
	if ctx.Err() != nil {
		report.Cancelled = true
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), m.cfg.FlushTimeout)
		defer cancel()
	}

	m.setState(StateNotifying)
	if len(report.NewMatches) > 0 {
		m.notify(finishCtx, !report.Cancelled, &report, log)
	}

	now := m.now()
	for _, opt := range report.Result.Matches {
		m.store.MarkSeen(opt.DedupKey(), now)
	}
	if err := m.store.Flush(finishCtx); err != nil {
		report.FlushError = err.Error()
		m.metrics.LedgerFlushFailures.Inc()
		log.Error("Ledger flush failed", logger.Err(err))
	}

	report.FinishedAt = m.now().UTC()
	m.observe(report)

	m.mu.Lock()
	m.last = &report
	m.state = prev
	if report.Cancelled {
		m.state = StateStopped
	}
	m.mu.Unlock()

	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

func (m *Monitor) activeProviders(report *CycleReport, log logger.Logger) []provider.Provider {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]provider.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if b, ok := m.backoff[p.Name()]; ok && now.Before(b.until) {
			report.Skipped = append(report.Skipped, p.Name())
			m.metrics.ProviderSkipped.WithLabelValues(p.Name()).Inc()
			log.Info("Skipping provider in backoff",
				logger.String("provider", p.Name()),
				logger.Duration("remaining", b.until.Sub(now)))
			continue
		}
		active = append(active, p)
	}
	return active
}

// recordProviderHealth grows the backoff of failed providers and resets it
// for healthy ones. Cancellation does not count as a failure.
func (m *Monitor) recordProviderHealth(active []provider.Provider, res scan.Result, log logger.Logger) {
	kinds := make(map[string]string, len(res.Errors))
	for _, e := range res.Errors {
		kinds[e.Provider] = e.Kind
		m.metrics.ProviderErrorsTotal.WithLabelValues(e.Provider, e.Kind).Inc()
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range active {
		name := p.Name()
		kind, failed := kinds[name]
		switch {
		case !failed:
			delete(m.backoff, name)
		case kind == provider.KindCancelled:
			// unchanged
		default:
			b := m.backoff[name]
			if b == nil {
				b = &backoff{}
				m.backoff[name] = b
			}
			b.failures++
			delay := m.backoffDelay(b.failures)
			b.until = now.Add(delay)
			log.Warn("Provider backing off",
				logger.String("provider", name),
				logger.Int("failures", b.failures),
				logger.Duration("delay", delay))
		}
	}
}

// backoffDelay returns base * 2^(failures-1), capped at the maximum.
func (m *Monitor) backoffDelay(failures int) time.Duration {
	d := m.cfg.BackoffBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= m.cfg.BackoffMax {
			return m.cfg.BackoffMax
		}
	}
	return min(d, m.cfg.BackoffMax)
}

func (m *Monitor) newMatches(matches []models.RoomOption) []models.RoomOption {
	fresh := []models.RoomOption{}
	seen := map[string]bool{}
	for _, opt := range matches {
		key := opt.DedupKey()
		if seen[key] || m.store.HasSeen(key) {
			continue
		}
		seen[key] = true
		fresh = append(fresh, opt)
	}
	return fresh
}

// notify sends the aggregated alert. The booking probe is skipped for
// cancelled cycles.
func (m *Monitor) notify(ctx context.Context, allowProbe bool, report *CycleReport, log logger.Logger) {
	if m.cfg.AutoProbe && allowProbe {
		report.Booking = m.probe(ctx, report.NewMatches[0], log)
	}

	message := notifier.BuildAlertMessage(report.NewMatches, notifier.AlertOptions{
		AllOptions: m.cfg.AllOptions,
		Booking:    report.Booking,
	})
	err := m.notifier.Send(ctx, message)
	switch {
	case err == nil:
		report.Notified = true
		m.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		log.Info("Alert sent", logger.String("notifier", m.notifier.Name()), logger.Int("new", len(report.NewMatches)))
	case errors.Is(err, notifier.ErrDisabled):
		m.metrics.NotificationsTotal.WithLabelValues("disabled").Inc()
		log.Debug("Notifier disabled, alert not sent", logger.Err(err))
	default:
		report.NotifyError = err.Error()
		m.metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error("Alert delivery failed", logger.String("notifier", m.notifier.Name()), logger.Err(err))
	}
}

func (m *Monitor) probe(ctx context.Context, opt models.RoomOption, log logger.Logger) *models.BookingContext {
	prober, err := m.registry.Prober(opt.Provider)
	if err != nil {
		log.Debug("No booking probe for provider", logger.String("provider", opt.Provider), logger.Err(err))
		return nil
	}
	bc, err := prober.ProbeBooking(ctx, opt)
	if err != nil {
		log.Warn("Booking probe failed", logger.String("option", opt.DedupKey()), logger.Err(err))
		return nil
	}
	return &bc
}

func (m *Monitor) observe(r CycleReport) {
	outcome := "ok"
	switch {
	case r.Cancelled:
		outcome = "cancelled"
	case len(r.Result.Errors) > 0:
		outcome = "partial"
	}
	m.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	m.metrics.CycleDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	m.metrics.MatchesLastCycle.Set(float64(r.Result.MatchCount))
	m.metrics.NewMatchesTotal.Add(float64(len(r.NewMatches)))
	m.metrics.LedgerEntries.Set(float64(m.store.Len()))
}
