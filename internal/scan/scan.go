// Package scan runs the enabled providers for one location and turns their
// options into a ranked match list.
package scan

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"student-rooms/internal/logger"
	"student-rooms/internal/matching"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

// DefaultProviderTimeout bounds a single provider's scan.
const DefaultProviderTimeout = 3 * time.Minute

// ProviderError annotates a provider that failed during a scan.
type ProviderError struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Result is the outcome of one scan.
type Result struct {
	MatchCount int                 `json:"matchCount"`
	Matches    []models.RoomOption `json:"matches"`
	Errors     []ProviderError     `json:"errors"`
	// Scanned lists the providers that ran, including failed ones.
	Scanned   []string  `json:"providers"`
	ScannedAt time.Time `json:"scannedAt"`
}

// Failed reports whether the named provider produced an error.
func (r Result) Failed(name string) bool {
	for _, e := range r.Errors {
		if e.Provider == name {
			return true
		}
	}
	return false
}

// Request describes one scan.
type Request struct {
	Providers []provider.Provider
	Location  models.Location
	Spec      matching.Spec
	Filters   matching.Filters
	// AllOptions skips the semester policy and the filters.
	AllOptions bool
	// AllYears disables academic-year scoping in the providers.
	AllYears bool
}

// Orchestrator fans a scan out to providers.
type Orchestrator struct {
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time
}

// New returns an Orchestrator. A non-positive timeout selects
// DefaultProviderTimeout.
func New(timeout time.Duration, log logger.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Orchestrator{timeout: timeout, log: log.With(logger.Component("scan")), now: time.Now}
}

type providerOutcome struct {
	options []models.RoomOption
	err     error
}

// Run scans every requested provider concurrently. Provider failures are
// reported in Result.Errors; options a provider returned alongside an error
// are still evaluated.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	query := provider.Query{AcademicYear: req.Spec.AcademicYear(), AllYears: req.AllYears}
	outcomes := make([]providerOutcome, len(req.Providers))

	var g errgroup.Group
	for i, p := range req.Providers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			start := time.Now()
			opts, err := p.ListOptions(pctx, req.Location, query)
			outcomes[i] = providerOutcome{options: opts, err: err}
			o.log.Debug("Provider scan finished",
				logger.String("provider", p.Name()),
				logger.Int("options", len(opts)),
				logger.Duration("took", time.Since(start)),
				logger.Err(err))
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Matches:   []models.RoomOption{},
		Errors:    []ProviderError{},
		Scanned:   make([]string, 0, len(req.Providers)),
		ScannedAt: o.now().UTC(),
	}
	for i, p := range req.Providers {
		out := outcomes[i]
		res.Scanned = append(res.Scanned, p.Name())
		if out.err != nil {
			o.log.Warn("Provider scan failed", logger.String("provider", p.Name()), logger.Err(out.err))
			res.Errors = append(res.Errors, ProviderError{
				Provider: p.Name(),
				Kind:     provider.ClassifyWithin(ctx, out.err),
				Message:  out.err.Error(),
			})
		}
		res.Matches = append(res.Matches, o.evaluate(p.Name(), out.options, req)...)
	}
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Provider < res.Errors[j].Provider })

	Rank(res.Matches)
	res.MatchCount = len(res.Matches)
	return res
}

func (o *Orchestrator) evaluate(name string, options []models.RoomOption, req Request) []models.RoomOption {
	var kept []models.RoomOption
	for _, opt := range options {
		if err := opt.Validate(); err != nil {
			o.log.Warn("Dropping invalid option", logger.String("provider", name), logger.Err(err))
			continue
		}
		if req.AllOptions {
			kept = append(kept, opt)
			continue
		}
		if v := matching.Match(opt, req.Spec); v.Match {
			kept = append(kept, opt)
		}
	}
	if req.AllOptions {
		return kept
	}
	return req.Filters.Apply(kept)
}
