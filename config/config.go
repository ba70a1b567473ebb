// Package config loads the YAML configuration and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"student-rooms/internal/ledger"
	"student-rooms/internal/logger"
	"student-rooms/internal/matching"
	"student-rooms/internal/models"
	"student-rooms/internal/monitor"
	"student-rooms/internal/notifier"
	"student-rooms/internal/provider/aparto"
	"student-rooms/internal/provider/yugo"
)

var (
	// ErrNoProviders is returned when every provider is disabled.
	ErrNoProviders = errors.New("no providers enabled")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Environment variables that override the file.
const (
	EnvTelegramToken   = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID  = "TELEGRAM_CHAT_ID"
	EnvWebhookURL      = "STUDENT_ROOMS_WEBHOOK_URL"
	EnvLedgerPath      = "STUDENT_ROOMS_LEDGER_PATH"
	EnvRedisAddr       = "STUDENT_ROOMS_REDIS_ADDR"
	EnvLogLevel        = "STUDENT_ROOMS_LOG_LEVEL"
	EnvIntervalSeconds = "STUDENT_ROOMS_INTERVAL_SECONDS"
)

// Config is the root of config.yaml.
type Config struct {
	Target        Target          `yaml:"target"`
	Providers     Providers       `yaml:"providers"`
	AcademicYear  AcademicYear    `yaml:"academic_year"`
	Filters       Filters         `yaml:"filters"`
	Polling       Polling         `yaml:"polling"`
	Watch         Watch           `yaml:"watch"`
	Ledger        Ledger          `yaml:"ledger"`
	Notifications notifier.Config `yaml:"notifications"`
	Logging       logger.Config   `yaml:"logging"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-"`
	path     string
}

// Target is the location to scan.
type Target struct {
	Country   string `yaml:"country"`
	City      string `yaml:"city"`
	CountryID string `yaml:"country_id"`
	CityID    string `yaml:"city_id"`
}

// Providers enables and tunes each backend.
type Providers struct {
	Yugo   YugoProvider   `yaml:"yugo"`
	Aparto ApartoProvider `yaml:"aparto"`
}

type YugoProvider struct {
	Enabled           bool    `yaml:"enabled"`
	BaseURL           string  `yaml:"base_url"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	Retries           int     `yaml:"retries"`
}

type ApartoProvider struct {
	Enabled              bool    `yaml:"enabled"`
	TermIDStart          int     `yaml:"term_id_start"`
	TermIDEnd            int     `yaml:"term_id_end"`
	MaxConsecutiveMisses int     `yaml:"max_consecutive_misses"`
	Concurrency          int     `yaml:"concurrency"`
	RequestsPerSecond    float64 `yaml:"requests_per_second"`
	TimeoutSeconds       int     `yaml:"timeout_seconds"`
}

// AcademicYear selects the year pair and the Semester 1 rules. Zero years
// mean the academic year current at startup.
type AcademicYear struct {
	StartYear int       `yaml:"start_year"`
	EndYear   int       `yaml:"end_year"`
	Semester1 Semester1 `yaml:"semester1"`
}

type Semester1 struct {
	NameKeywords       []string `yaml:"name_keywords"`
	RequireKeyword     bool     `yaml:"require_keyword"`
	StartMonths        []int    `yaml:"start_months"`
	EndMonths          []int    `yaml:"end_months"`
	EnforceMonthWindow bool     `yaml:"enforce_month_window"`
}

// Filters are optional room constraints. Prices are in euros.
type Filters struct {
	PrivateBathroom *bool    `yaml:"private_bathroom"`
	PrivateKitchen  *bool    `yaml:"private_kitchen"`
	MaxWeeklyPrice  *float64 `yaml:"max_weekly_price"`
	MaxMonthlyPrice *float64 `yaml:"max_monthly_price"`
}

type Polling struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	JitterSeconds   int `yaml:"jitter_seconds"`
}

// Watch tunes the watch loop.
type Watch struct {
	AutoProbe              bool   `yaml:"auto_probe"`
	ProviderTimeoutSeconds int    `yaml:"provider_timeout_seconds"`
	BackoffBaseSeconds     int    `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds      int    `yaml:"backoff_max_seconds"`
	BotCommands            bool   `yaml:"bot_commands"`
	MetricsAddr            string `yaml:"metrics_addr"`
}

type Ledger struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisLedger `yaml:"redis"`
}

type RedisLedger struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Providers: Providers{
			Yugo:   YugoProvider{Enabled: true},
			Aparto: ApartoProvider{Enabled: true, TermIDStart: 1200, TermIDEnd: 1600},
		},
		AcademicYear: AcademicYear{
			Semester1: Semester1{
				NameKeywords:       []string{"semester 1"},
				RequireKeyword:     true,
				StartMonths:        []int{9, 10},
				EndMonths:          []int{1, 2},
				EnforceMonthWindow: true,
			},
		},
		Polling: Polling{
			IntervalSeconds: int(monitor.DefaultInterval / time.Second),
			JitterSeconds:   int(monitor.DefaultJitter / time.Second),
		},
		Watch: Watch{
			ProviderTimeoutSeconds: 180,
			BackoffBaseSeconds:     int(monitor.DefaultBackoffBase / time.Second),
			BackoffMaxSeconds:      int(monitor.DefaultBackoffMax / time.Second),
		},
		Ledger:        Ledger{Backend: ledger.BackendJSON},
		Notifications: notifier.Config{Type: notifier.TypeStdout},
		Logging:       logger.Config{Level: "info"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/student-rooms-cli/config.yaml,
// falling back to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "student-rooms-cli", "config.yaml")
}

// Load reads path (DefaultPath when empty) over the defaults and applies the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file not found at %s; using defaults", path))
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalid, path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string { return c.path }

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvTelegramToken); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := getenv(EnvTelegramChatID); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := getenv(EnvWebhookURL); v != "" {
		c.Notifications.Webhook.URL = v
	}
	if v := getenv(EnvLedgerPath); v != "" {
		c.Ledger.Path = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Ledger.Redis.Addr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvIntervalSeconds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvIntervalSeconds, v)
		}
		c.Polling.IntervalSeconds = n
	}
	return nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if len(c.EnabledProviders()) == 0 {
		errs = append(errs, ErrNoProviders)
	}
	if floor := int(monitor.MinInterval / time.Second); c.Polling.IntervalSeconds < floor {
		invalid("polling.interval_seconds must be at least %d, got %d", floor, c.Polling.IntervalSeconds)
	}
	if c.Polling.JitterSeconds < 0 {
		invalid("polling.jitter_seconds must not be negative")
	}

	ay := c.AcademicYear
	if ay.StartYear != 0 && ay.EndYear != 0 && ay.EndYear < ay.StartYear {
		invalid("academic_year.end_year %d is before start_year %d", ay.EndYear, ay.StartYear)
	}
	if ay.StartYear == 0 && ay.EndYear != 0 {
		invalid("academic_year.end_year requires start_year")
	}
	for name, months := range map[string][]int{
		"start_months": ay.Semester1.StartMonths,
		"end_months":   ay.Semester1.EndMonths,
	} {
		for _, m := range months {
			if m < 1 || m > 12 {
				invalid("academic_year.semester1.%s contains %d", name, m)
			}
		}
	}
	if ay.Semester1.RequireKeyword && len(ay.Semester1.NameKeywords) == 0 {
		invalid("academic_year.semester1.require_keyword needs at least one name keyword")
	}

	for name, v := range map[string]*float64{
		"max_weekly_price":  c.Filters.MaxWeeklyPrice,
		"max_monthly_price": c.Filters.MaxMonthlyPrice,
	} {
		if v != nil && *v <= 0 {
			invalid("filters.%s must be positive", name)
		}
	}

	if t := c.Notifications.Type; t != "" && !slices.Contains(notifier.Types, t) {
		errs = append(errs, fmt.Errorf("%w: %w: %q (want one of %s)", ErrInvalid, notifier.ErrUnknownType, t, strings.Join(notifier.Types, ", ")))
	}
	switch c.Ledger.Backend {
	case "", ledger.BackendJSON, ledger.BackendSQLite, ledger.BackendRedis, ledger.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: %w: %q", ErrInvalid, ledger.ErrUnknownBackend, c.Ledger.Backend))
	}
	if a := c.Providers.Aparto; a.TermIDStart > 0 && a.TermIDEnd > 0 && a.TermIDEnd < a.TermIDStart {
		invalid("providers.aparto.term_id_end %d is before term_id_start %d", a.TermIDEnd, a.TermIDStart)
	}
	if c.Watch.BackoffMaxSeconds > 0 && c.Watch.BackoffMaxSeconds < c.Watch.BackoffBaseSeconds {
		invalid("watch.backoff_max_seconds is below backoff_base_seconds")
	}
	return errors.Join(errs...)
}

// EnabledProviders returns the enabled provider names in registry order.
func (c *Config) EnabledProviders() []string {
	var names []string
	if c.Providers.Yugo.Enabled {
		names = append(names, models.ProviderYugo)
	}
	if c.Providers.Aparto.Enabled {
		names = append(names, models.ProviderAparto)
	}
	return names
}

// Location converts the target section.
func (c *Config) Location() models.Location {
	return models.Location{
		Country:   c.Target.Country,
		City:      c.Target.City,
		CountryID: c.Target.CountryID,
		CityID:    c.Target.CityID,
	}
}

// MatchingSpec builds the Semester 1 spec. Unset years resolve to the
// academic year current at now.
func (c *Config) MatchingSpec(now time.Time) matching.Spec {
	spec := matching.DefaultSpec(now)
	ay := c.AcademicYear
	if ay.StartYear != 0 {
		spec.StartYear = ay.StartYear
		spec.EndYear = ay.StartYear + 1
		if ay.EndYear != 0 {
			spec.EndYear = ay.EndYear
		}
	}
	s1 := ay.Semester1
	spec.NameKeywords = slices.Clone(s1.NameKeywords)
	spec.RequireKeyword = s1.RequireKeyword
	spec.EnforceMonthWindow = s1.EnforceMonthWindow
	if len(s1.StartMonths) > 0 {
		spec.StartMonths = slices.Clone(s1.StartMonths)
	}
	if len(s1.EndMonths) > 0 {
		spec.EndMonths = slices.Clone(s1.EndMonths)
	}
	return spec
}

// MatchingFilters converts the filters section.
func (c *Config) MatchingFilters() matching.Filters {
	f := matching.Filters{
		PrivateBathroom: c.Filters.PrivateBathroom,
		PrivateKitchen:  c.Filters.PrivateKitchen,
	}
	if v := c.Filters.MaxWeeklyPrice; v != nil {
		d := decimal.NewFromFloat(*v)
		f.MaxWeeklyPrice = &d
	}
	if v := c.Filters.MaxMonthlyPrice; v != nil {
		d := decimal.NewFromFloat(*v)
		f.MaxMonthlyPrice = &d
	}
	return f
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c *Config) Jitter() time.Duration {
	return time.Duration(c.Polling.JitterSeconds) * time.Second
}

// MonitorConfig maps the polling and watch sections onto the watch loop.
func (c *Config) MonitorConfig(now time.Time) monitor.Config {
	return monitor.Config{
		Location:    c.Location(),
		Spec:        c.MatchingSpec(now),
		Filters:     c.MatchingFilters(),
		Interval:    c.Interval(),
		Jitter:      c.Jitter(),
		AutoProbe:   c.Watch.AutoProbe,
		BackoffBase: time.Duration(c.Watch.BackoffBaseSeconds) * time.Second,
		BackoffMax:  time.Duration(c.Watch.BackoffMaxSeconds) * time.Second,
	}
}

// ProviderTimeout bounds one provider's part of a scan.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Watch.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) YugoConfig() yugo.Config {
	y := c.Providers.Yugo
	cfg := yugo.DefaultConfig()
	if y.BaseURL != "" {
		cfg.BaseURL = y.BaseURL
	}
	if y.Concurrency > 0 {
		cfg.Concurrency = y.Concurrency
	}
	if y.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = y.RequestsPerSecond
	}
	if y.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(y.TimeoutSeconds) * time.Second
	}
	if y.Retries > 0 {
		cfg.Retries = y.Retries
	}
	return cfg
}

func (c *Config) ApartoConfig() aparto.Config {
	a := c.Providers.Aparto
	cfg := aparto.DefaultConfig()
	if a.TermIDStart > 0 {
		cfg.TermStart = a.TermIDStart
	}
	if a.TermIDEnd > 0 {
		cfg.TermEnd = a.TermIDEnd
	}
	if a.MaxConsecutiveMisses > 0 {
		cfg.MaxConsecutiveMisses = a.MaxConsecutiveMisses
	}
	if a.Concurrency > 0 {
		cfg.Concurrency = a.Concurrency
	}
	if a.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = a.RequestsPerSecond
	}
	if a.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(a.TimeoutSeconds) * time.Second
	}
	return cfg
}

func (c *Config) LedgerConfig() ledger.Config {
	return ledger.Config{
		Backend:       c.Ledger.Backend,
		Path:          c.Ledger.Path,
		RedisAddr:     c.Ledger.Redis.Addr,
		RedisPassword: c.Ledger.Redis.Password,
		RedisDB:       c.Ledger.Redis.DB,
		RedisKey:      c.Ledger.Redis.Key,
	}
}
