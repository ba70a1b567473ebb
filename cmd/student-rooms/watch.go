package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"student-rooms/internal/bot"
	"student-rooms/internal/ledger"
	"student-rooms/internal/logger"
	"student-rooms/internal/monitor"
	"student-rooms/internal/notifier"
	"student-rooms/internal/scan"
)

type watchOptions struct {
	interval    time.Duration
	jitter      time.Duration
	once        bool
	metricsAddr string
	dryRun      bool
	allOptions  bool
}

func watchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan on an interval and alert on options not seen before",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("jitter") {
				opts.jitter = -1
			}
			return a.watch(cmd.Context(), opts)
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Time between cycles (default polling.interval_seconds)")
	cmd.Flags().DurationVar(&opts.jitter, "jitter", 0, "Random spread around the interval (default polling.jitter_seconds)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single cycle and exit")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use an in-memory ledger and print alerts to stdout")
	cmd.Flags().BoolVar(&opts.allOptions, "all-options", false, "Alert on every option, not only Semester 1")
	return cmd
}

func (a *app) watch(ctx context.Context, opts watchOptions) error {
	loc, err := a.location()
	if err != nil {
		return err
	}

	store, n, err := a.watchBackends(ctx, opts.dryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(reg)

	mcfg := a.cfg.MonitorConfig(a.now())
	mcfg.Location = loc
	mcfg.AllOptions = opts.allOptions
	if opts.interval > 0 {
		mcfg.Interval = opts.interval
	}
	if opts.jitter >= 0 {
		mcfg.Jitter = opts.jitter
	}

	m, err := monitor.New(mcfg, monitor.Deps{
		Registry: a.registry,
		Scanner:  scan.New(a.cfg.ProviderTimeout(), a.log),
		Store:    store,
		Notifier: n,
		Logger:   a.log,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	if opts.once {
		report, err := m.RunCycle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%d matches, %d new\n", report.Result.MatchCount, len(report.NewMatches))
		renderProviderErrors(a.stderr, report.Result.Errors)
		return nil
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = a.cfg.Watch.MetricsAddr
	}
	if addr != "" {
		stop := a.serveMetrics(addr, reg)
		defer stop()
	}
	if a.cfg.Watch.BotCommands && !opts.dryRun {
		if err := a.startBot(ctx, m); err != nil {
			return err
		}
	}

	spec := mcfg.Spec
	fmt.Fprintf(a.stdout, "▶ Watch started | providers: %s | interval: %s | academic year: %s\n",
		strings.Join(a.registry.Names(), ", "), mcfg.Interval, spec.AcademicYear().Label())
	err = m.Run(ctx)
	fmt.Fprintln(a.stdout, "⏹ Watch stopped.")
	return err
}

func (a *app) watchBackends(ctx context.Context, dryRun bool) (ledger.Store, notifier.Notifier, error) {
	if dryRun {
		return ledger.NewMemoryStore(), notifier.NewStdout(a.stdout), nil
	}

	n, err := a.notifier()
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(a.cfg.LedgerConfig(), a.log)
	if err != nil {
		return nil, nil, err
	}
	status, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	a.log.Info("Ledger loaded",
		logger.String("backend", a.cfg.Ledger.Backend),
		logger.String("status", status.String()),
		logger.Int("entries", store.Len()))
	return store, n, nil
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.log.Info("Serving metrics", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server failed", logger.Err(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) startBot(ctx context.Context, m *monitor.Monitor) error {
	tg := a.cfg.Notifications.Telegram
	if tg.BotToken == "" {
		return errors.New("watch.bot_commands needs notifications.telegram.bot_token")
	}
	endpoint := tg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(tg.BotToken, endpoint, &http.Client{Timeout: 90 * time.Second})
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	b, err := bot.New(api, m, tg.ChatID, a.log)
	if err != nil {
		return err
	}
	go b.Listen(ctx)
	return nil
}
