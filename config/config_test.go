package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-rooms/internal/ledger"
	"student-rooms/internal/notifier"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvTelegramToken, EnvTelegramChatID, EnvWebhookURL, EnvLedgerPath, EnvRedisAddr, EnvLogLevel, EnvIntervalSeconds} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Warnings, 1)
	assert.Equal(t, []string{"yugo", "aparto"}, cfg.EnabledProviders())
	assert.Equal(t, 300*time.Second, cfg.Interval())
	assert.Equal(t, 30*time.Second, cfg.Jitter())
	assert.Equal(t, notifier.TypeStdout, cfg.Notifications.Type)
	assert.Equal(t, ledger.BackendJSON, cfg.Ledger.Backend)
	assert.Equal(t, 1200, cfg.ApartoConfig().TermStart)
	assert.Equal(t, 1600, cfg.ApartoConfig().TermEnd)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
target:
  country: Ireland
  city: Dublin
  city_id: "598930"
providers:
  aparto:
    enabled: false
  yugo:
    concurrency: 3
academic_year:
  start_year: 2026
  end_year: 2027
  semester1:
    name_keywords: ["semester 1", "sem 1"]
    start_months: [9]
filters:
  private_bathroom: true
  max_weekly_price: 320.5
polling:
  interval_seconds: 120
  jitter_seconds: 0
watch:
  auto_probe: true
ledger:
  backend: sqlite
  path: /tmp/seen.db
notifications:
  type: webhook
  webhook:
    url: https://hooks.example.com/rooms
    headers:
      X-Token: abc
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, path, cfg.Path())
	assert.Empty(t, cfg.Warnings)

	loc := cfg.Location()
	assert.Equal(t, "Dublin", loc.City)
	assert.Equal(t, "598930", loc.CityID)
	assert.Equal(t, []string{"yugo"}, cfg.EnabledProviders())
	assert.Equal(t, 3, cfg.YugoConfig().Concurrency)

	spec := cfg.MatchingSpec(time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, spec.StartYear)
	assert.Equal(t, 2027, spec.EndYear)
	assert.Equal(t, []string{"semester 1", "sem 1"}, spec.NameKeywords)
	assert.Equal(t, []int{9}, spec.StartMonths)
	assert.Equal(t, []int{1, 2}, spec.EndMonths)
	assert.True(t, spec.RequireKeyword)

	filters := cfg.MatchingFilters()
	require.NotNil(t, filters.PrivateBathroom)
	assert.True(t, *filters.PrivateBathroom)
	require.NotNil(t, filters.MaxWeeklyPrice)
	assert.Equal(t, "320.5", filters.MaxWeeklyPrice.String())
	assert.Nil(t, filters.MaxMonthlyPrice)

	mc := cfg.MonitorConfig(time.Now())
	assert.Equal(t, 120*time.Second, mc.Interval)
	assert.Zero(t, mc.Jitter)
	assert.True(t, mc.AutoProbe)

	lc := cfg.LedgerConfig()
	assert.Equal(t, ledger.BackendSQLite, lc.Backend)
	assert.Equal(t, "/tmp/seen.db", lc.Path)
	assert.Equal(t, "abc", cfg.Notifications.Webhook.Headers["X-Token"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTelegramToken, "123:abc")
	t.Setenv(EnvTelegramChatID, "-100200")
	t.Setenv(EnvLedgerPath, "/data/seen.json")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvIntervalSeconds, "60")

	path := writeConfig(t, "notifications:\n  type: telegram\n  telegram:\n    bot_token: from-file\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, "-100200", cfg.Notifications.Telegram.ChatID)
	assert.Equal(t, "/data/seen.json", cfg.Ledger.Path)
	assert.Equal(t, "redis:6379", cfg.Ledger.Redis.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Interval())

	t.Setenv(EnvIntervalSeconds, "soon")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "target: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"no providers", func(c *Config) {
			c.Providers.Yugo.Enabled = false
			c.Providers.Aparto.Enabled = false
		}, ErrNoProviders},
		{"interval floor", func(c *Config) { c.Polling.IntervalSeconds = 2 }, ErrInvalid},
		{"negative jitter", func(c *Config) { c.Polling.JitterSeconds = -1 }, ErrInvalid},
		{"reversed years", func(c *Config) {
			c.AcademicYear.StartYear = 2027
			c.AcademicYear.EndYear = 2026
		}, ErrInvalid},
		{"end year alone", func(c *Config) { c.AcademicYear.EndYear = 2027 }, ErrInvalid},
		{"bad month", func(c *Config) { c.AcademicYear.Semester1.EndMonths = []int{13} }, ErrInvalid},
		{"keyword required but empty", func(c *Config) { c.AcademicYear.Semester1.NameKeywords = nil }, ErrInvalid},
		{"zero price filter", func(c *Config) {
			zero := 0.0
			c.Filters.MaxMonthlyPrice = &zero
		}, ErrInvalid},
		{"unknown notifier", func(c *Config) { c.Notifications.Type = "pager" }, notifier.ErrUnknownType},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "etcd" }, ledger.ErrUnknownBackend},
		{"reversed term range", func(c *Config) {
			c.Providers.Aparto.TermIDStart = 1500
			c.Providers.Aparto.TermIDEnd = 1400
		}, ErrInvalid},
		{"backoff cap below base", func(c *Config) { c.Watch.BackoffMaxSeconds = 10 }, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMatchingSpec_DefaultsToCurrentYear(t *testing.T) {
	cfg := Default()
	spec := cfg.MatchingSpec(time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2026, spec.StartYear)
	assert.Equal(t, 2027, spec.EndYear)

	cfg.AcademicYear.StartYear = 2027
	spec = cfg.MatchingSpec(time.Now())
	assert.Equal(t, 2027, spec.StartYear)
	assert.Equal(t, 2028, spec.EndYear)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, filepath.Join("/cfg", "student-rooms-cli", "config.yaml"), DefaultPath())
}
