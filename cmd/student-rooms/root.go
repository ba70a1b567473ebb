package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"student-rooms/config"
	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/notifier"
	"student-rooms/internal/provider"
	"student-rooms/internal/provider/aparto"
	"student-rooms/internal/provider/yugo"
	"student-rooms/internal/scan"
)

const providerAll = "all"

type globalOptions struct {
	configPath string
	logLevel   string
	provider   string
	country    string
	city       string
	countryID  string
	cityID     string
	json       bool
}

// app holds what every command needs once flags and config are resolved.
type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	log      logger.Logger
	registry *provider.Registry
	yugo     *yugo.Provider
	now      func() time.Time
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, now: time.Now}

	root := &cobra.Command{
		Use:   "student-rooms",
		Short: "Watch Yugo and Aparto for Semester 1 student rooms",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "Path to config.yaml (default $XDG_CONFIG_HOME/student-rooms-cli/config.yaml)")
	flags.BoolVar(&a.opts.json, "json", false, "Output JSON")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.opts.provider, "provider", providerAll, "Provider to use: yugo, aparto or all")
	flags.StringVar(&a.opts.country, "country", "", "Country name")
	flags.StringVar(&a.opts.city, "city", "", "City name")
	flags.StringVar(&a.opts.countryID, "country-id", "", "Yugo country id")
	flags.StringVar(&a.opts.cityID, "city-id", "", "Yugo city id")

	root.AddCommand(
		discoverCmd(a),
		scanCmd(a),
		watchCmd(a),
		probeBookingCmd(a),
		notifyCmd(a),
		testMatchCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if err := a.applyFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.log = log
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	var providers []provider.Provider
	if cfg.Providers.Yugo.Enabled {
		y, err := yugo.New(cfg.YugoConfig(), log)
		if err != nil {
			return err
		}
		a.yugo = y
		providers = append(providers, y)
	}
	if cfg.Providers.Aparto.Enabled {
		ap, err := aparto.New(cfg.ApartoConfig(), log)
		if err != nil {
			return err
		}
		providers = append(providers, ap)
	}
	a.registry = provider.NewRegistry(providers...)
	return nil
}

func (a *app) applyFlags(cfg *config.Config) error {
	switch p := strings.ToLower(a.opts.provider); p {
	case "", providerAll:
	case models.ProviderYugo, models.ProviderAparto:
		cfg.Providers.Yugo.Enabled = p == models.ProviderYugo
		cfg.Providers.Aparto.Enabled = p == models.ProviderAparto
	default:
		return fmt.Errorf("--provider must be yugo, aparto or all, got %q", a.opts.provider)
	}

	if a.opts.country != "" {
		cfg.Target.Country = a.opts.country
		cfg.Target.CountryID = ""
	}
	if a.opts.city != "" {
		cfg.Target.City = a.opts.city
		cfg.Target.CityID = ""
	}
	if a.opts.countryID != "" {
		cfg.Target.CountryID = a.opts.countryID
	}
	if a.opts.cityID != "" {
		cfg.Target.CityID = a.opts.cityID
	}
	if a.opts.logLevel != "" {
		cfg.Logging.Level = a.opts.logLevel
	}
	return nil
}

func (a *app) location() (models.Location, error) {
	loc := a.cfg.Location()
	if loc.City == "" && loc.CityID == "" {
		return loc, errors.New("no target city: set target.city in config or pass --city")
	}
	return loc, nil
}

func (a *app) providers() []provider.Provider {
	ps, _ := a.registry.Select()
	return ps
}

func (a *app) scan(ctx context.Context, allOptions, allYears bool) (scan.Result, error) {
	loc, err := a.location()
	if err != nil {
		return scan.Result{}, err
	}
	orch := scan.New(a.cfg.ProviderTimeout(), a.log)
	return orch.Run(ctx, scan.Request{
		Providers:  a.providers(),
		Location:   loc,
		Spec:       a.cfg.MatchingSpec(a.now()),
		Filters:    a.cfg.MatchingFilters(),
		AllOptions: allOptions,
		AllYears:   allYears,
	}), nil
}

// notifier builds the configured notifier and checks its settings.
func (a *app) notifier() (notifier.Notifier, error) {
	n, err := notifier.New(a.cfg.Notifications, a.stdout, a.log)
	if err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
