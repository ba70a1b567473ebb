// Package yugo walks the Yugo JSON API from country down to tenancy option.
package yugo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

// DefaultBaseURL is the public Yugo API prefix.
const DefaultBaseURL = "https://yugo.com/en-gb/"

// Config tunes the Yugo walker.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	Concurrency       int
	RequestsPerSecond float64
	Retries           int
	RetryBackoff      time.Duration
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           30 * time.Second,
		Concurrency:       8,
		RequestsPerSecond: 5,
		Retries:           3,
		RetryBackoff:      time.Second,
	}
}

// Provider implements provider.Provider and provider.BookingProber for Yugo.
type Provider struct {
	client      *Client
	concurrency int
	log         logger.Logger
}

// New builds a Yugo provider. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config, log logger.Logger) (*Provider, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	log = log.With(logger.Component("yugo"))

	client, err := newClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("yugo client: %w", err)
	}
	return &Provider{client: client, concurrency: cfg.Concurrency, log: log}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return models.ProviderYugo }

// Client exposes the underlying API client for listing countries and cities.
func (p *Provider) Client() *Client { return p.client }

// ResolveCountry returns the Yugo id of the named country.
func (p *Provider) ResolveCountry(ctx context.Context, loc models.Location) (string, error) {
	if loc.CountryID != "" {
		return loc.CountryID, nil
	}
	countries, err := p.client.Countries(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range countries {
		if sameName(c.Name, loc.Country) {
			return c.Key(), nil
		}
	}
	return "", fmt.Errorf("yugo country %q: %w", loc.Country, provider.ErrLocationNotFound)
}

// ResolveCity returns the Yugo id of the target city.
func (p *Provider) ResolveCity(ctx context.Context, loc models.Location) (string, error) {
	if loc.CityID != "" {
		return loc.CityID, nil
	}
	countryID, err := p.ResolveCountry(ctx, loc)
	if err != nil {
		return "", err
	}
	cities, err := p.client.Cities(ctx, countryID)
	if err != nil {
		return "", err
	}
	for _, c := range cities {
		if sameName(c.Name, loc.City) {
			return c.Key(), nil
		}
	}
	return "", fmt.Errorf("yugo city %q: %w", loc.City, provider.ErrLocationNotFound)
}

// Discover implements provider.Provider.
func (p *Provider) Discover(ctx context.Context, loc models.Location) ([]models.PropertyRef, error) {
	cityID, err := p.ResolveCity(ctx, loc)
	if err != nil {
		return nil, err
	}
	residences, err := p.client.Residences(ctx, cityID)
	if err != nil {
		return nil, err
	}
	refs := make([]models.PropertyRef, 0, len(residences))
	for _, r := range residences {
		refs = append(refs, models.PropertyRef{
			Provider: models.ProviderYugo,
			Slug:     r.ID.String(),
			Name:     r.Name,
			Location: r.LocationInfo.String(),
			URL:      firstNonEmpty(r.PortalLink, r.PaymentLink),
			City:     loc.City,
			Country:  loc.Country,
		})
	}
	return refs, nil
}

// ListOptions implements provider.Provider. Residences are walked
// concurrently; a failing residence is skipped.
func (p *Provider) ListOptions(ctx context.Context, loc models.Location, q provider.Query) ([]models.RoomOption, error) {
	cityID, err := p.ResolveCity(ctx, loc)
	if err != nil {
		return nil, err
	}
	residences, err := p.client.Residences(ctx, cityID)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		walked   int
		failed   int
		lastErr  error
		perIndex = make([][]models.RoomOption, len(residences))
	)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, res := range residences {
		if res.ID == "" || res.ContentID == "" {
			continue
		}
		walked++
		g.Go(func() error {
			opts, err := p.walkResidence(ctx, res, loc, q)
			if err != nil {
				p.log.Warn("Skipping residence",
					logger.String("residence", res.Name),
					logger.String("residence_id", res.ID.String()),
					logger.String("kind", provider.Classify(err)),
					logger.Err(err))
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
			}
			perIndex[i] = opts
			return nil
		})
	}
	_ = g.Wait()

	var out []models.RoomOption
	for _, opts := range perIndex {
		out = append(out, opts...)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if walked > 0 && failed == walked {
		return nil, fmt.Errorf("%w: all %d residences failed, last: %w", provider.ErrUpstreamUnavailable, walked, lastErr)
	}
	p.log.Info("Yugo walk complete",
		logger.String("location", loc.String()),
		logger.Int("residences", walked),
		logger.Int("failed", failed),
		logger.Int("options", len(out)))
	return out, nil
}

// walkResidence returns whatever options it gathered before an error.
func (p *Provider) walkResidence(ctx context.Context, res Residence, loc models.Location, q provider.Query) ([]models.RoomOption, error) {
	rooms, err := p.client.Rooms(ctx, res.ID.String())
	if err != nil {
		return nil, err
	}

	var out []models.RoomOption
	for _, room := range rooms {
		if room.SoldOut == nil || *room.SoldOut || room.ID == "" {
			continue
		}
		groups, err := p.client.TenancyOptions(ctx, res.ID.String(), res.ContentID.String(), room.ID.String())
		if err != nil {
			return out, err
		}
		for _, group := range groups {
			if !q.AllYears && !groupInYear(group, q.AcademicYear) {
				continue
			}
			for _, opt := range group.Options {
				out = append(out, buildOption(res, room, group, opt, loc, q))
			}
		}
	}
	return out, nil
}

func buildOption(res Residence, room Room, group TenancyGroup, opt TenancyOption, loc models.Location, q provider.Query) models.RoomOption {
	year := q.AcademicYear
	if group.FromYear > 0 && group.ToYear > 0 {
		year = models.AcademicYear{StartYear: int(group.FromYear), EndYear: int(group.ToYear)}
	}

	weekly := weeklyPrice(room)
	label := room.PriceLabel
	if weekly.Valid {
		label = "€" + weekly.Decimal.StringFixed(0) + "/week"
	}

	o := models.RoomOption{
		Provider:        models.ProviderYugo,
		PropertyName:    res.Name,
		PropertySlug:    res.ID.String(),
		RoomType:        room.Name,
		PriceWeekly:     weekly,
		PriceLabel:      label,
		Available:       true,
		BookingURL:      firstNonEmpty(opt.LinkToRedirect, res.PortalLink, res.PaymentLink),
		AcademicYear:    year.Label(),
		OptionName:      firstNonEmpty(opt.Name, opt.FormattedLabel),
		Location:        res.LocationInfo.String(),
		PrivateBathroom: privateArrangement(room.BathroomArrangement),
		PrivateKitchen:  privateArrangement(room.KitchenArrangement),
		Ref: models.SourceRef{
			ResidenceID:        res.ID.String(),
			ResidenceContentID: res.ContentID.String(),
			RoomID:             room.ID.String(),
			OptionID:           opt.ID.String(),
			AcademicYearID:     group.AcademicYearID.String(),
			FromYear:           int(group.FromYear),
			ToYear:             int(group.ToYear),
			MaxBedsInFlat:      int(room.MaxNumOfBedsInFlat),
			PortalLink:         res.PortalLink,
			PaymentLink:        res.PaymentLink,
			City:               loc.City,
			Country:            loc.Country,
		},
	}
	if room.MinPricePerNight.Valid {
		o.Ref.PricePerNight = room.MinPricePerNight.Decimal.String()
	}
	return o.WithDates(parseDate(opt.StartDate), parseDate(opt.EndDate))
}

// groupInYear reports whether a tenancy group belongs to year. Missing
// years are not held against the group.
func groupInYear(g TenancyGroup, year models.AcademicYear) bool {
	if g.FromYear != 0 && int(g.FromYear) != year.StartYear {
		return false
	}
	if g.ToYear != 0 && int(g.ToYear) != year.EndYear {
		return false
	}
	return true
}

var weeksPerMonth = decimal.NewFromFloat(4.33)

// weeklyPrice derives a weekly price from the billing-cycle price and its
// label, falling back to seven nights.
func weeklyPrice(room Room) decimal.NullDecimal {
	label := strings.ToLower(room.PriceLabel)
	if label != "" && room.MinPriceForBillingCycle.Valid {
		cycle := room.MinPriceForBillingCycle.Decimal
		switch {
		case strings.Contains(label, "week"):
			return decimal.NewNullDecimal(cycle)
		case strings.Contains(label, "month"):
			return decimal.NewNullDecimal(cycle.Div(weeksPerMonth).Round(2))
		}
	}
	if room.MinPricePerNight.Valid && room.MinPricePerNight.Decimal.IsPositive() {
		return decimal.NewNullDecimal(room.MinPricePerNight.Decimal.Mul(decimal.NewFromInt(7)))
	}
	return decimal.NullDecimal{}
}

func privateArrangement(arrangement string) *bool {
	if arrangement == "" {
		return nil
	}
	return models.BoolPtr(strings.Contains(strings.ToLower(arrangement), "private"))
}

func parseDate(s string) *models.Date {
	if s == "" {
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
