// Package aparto finds Aparto booking terms by probing StarRez term ids and
// prices them from the apartostudent.com property pages.
package aparto

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

// Config tunes the portal prober. URL fields exist so tests can point the
// provider at a local server.
type Config struct {
	MainBaseURL  string
	EntryURL     string
	PortalEUBase string
	PortalOrigin string
	// PortalBases maps a region ("IE", "UK") to its StarRez portal.
	PortalBases map[string]string

	TermStart            int
	TermEnd              int
	MaxConsecutiveMisses int
	Concurrency          int
	TransientRetries     int
	RetryBackoff         time.Duration
	RequestsPerSecond    float64
	Timeout              time.Duration
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		MainBaseURL:          MainBaseURL,
		EntryURL:             EntryURL,
		PortalEUBase:         PortalEUBase,
		PortalOrigin:         PortalOrigin,
		PortalBases:          map[string]string{portalRegionIE: PortalIEBase, portalRegionUK: PortalUKBase},
		TermStart:            1200,
		TermEnd:              1600,
		MaxConsecutiveMisses: 50,
		Concurrency:          4,
		TransientRetries:     2,
		RetryBackoff:         time.Second,
		RequestsPerSecond:    6,
		Timeout:              20 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MainBaseURL == "" {
		c.MainBaseURL = def.MainBaseURL
	}
	if c.EntryURL == "" {
		c.EntryURL = def.EntryURL
	}
	if c.PortalEUBase == "" {
		c.PortalEUBase = def.PortalEUBase
	}
	if c.PortalOrigin == "" {
		c.PortalOrigin = def.PortalOrigin
	}
	if c.PortalBases == nil {
		c.PortalBases = def.PortalBases
	}
	if c.TermStart <= 0 {
		c.TermStart = def.TermStart
	}
	if c.TermEnd < c.TermStart {
		c.TermEnd = max(def.TermEnd, c.TermStart)
	}
	if c.MaxConsecutiveMisses <= 0 {
		c.MaxConsecutiveMisses = def.MaxConsecutiveMisses
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.TransientRetries < 0 {
		c.TransientRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	c.MainBaseURL = strings.TrimRight(c.MainBaseURL, "/")
	return c
}

// Provider implements provider.Provider and provider.BookingProber for Aparto.
type Provider struct {
	cfg  Config
	http *resty.Client
	log  logger.Logger

	// mu serialises scans; the cookie jar holds one portal session at a time.
	mu sync.Mutex
}

// New builds an Aparto provider.
func New(cfg Config, log logger.Logger) (*Provider, error) {
	cfg = cfg.withDefaults()
	httpClient, err := provider.NewHTTPClient(provider.ClientOptions{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Concurrency,
		Cookies:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("aparto client: %w", err)
	}
	return &Provider{cfg: cfg, http: httpClient, log: log.With(logger.Component("aparto"))}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return models.ProviderAparto }

// Discover implements provider.Provider. It works for every city, including
// those without a booking portal.
func (p *Provider) Discover(ctx context.Context, loc models.Location) ([]models.PropertyRef, error) {
	route, err := ResolveRoute(loc.City, loc.Country)
	if err != nil {
		return nil, err
	}
	return p.discoverProperties(ctx, route)
}

// ListOptions implements provider.Provider. It emits one option per
// target-city term and room type.
func (p *Provider) ListOptions(ctx context.Context, loc models.Location, q provider.Query) ([]models.RoomOption, error) {
	route, err := ResolveRoute(loc.City, loc.Country)
	if err != nil {
		return nil, err
	}
	if !route.HasPortal() {
		return nil, fmt.Errorf("aparto %s (%s): %w", route.City, route.Country, ErrNoPortal)
	}
	portal, ok := p.cfg.PortalBases[route.Region]
	if !ok {
		return nil, fmt.Errorf("aparto region %s: %w", route.Region, ErrNoPortal)
	}

	props, err := p.discoverProperties(ctx, route)
	if err != nil {
		return nil, err
	}
	index := newPropertyIndex(props)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.establishSession(ctx, route); err != nil {
		return nil, fmt.Errorf("aparto session: %w", err)
	}

	terms, stats, scanErr := p.scanTerms(ctx, portal, func(t Term) bool { return index.IsTarget(t.Name) })
	p.log.Info("StarRez scan complete",
		logger.String("city", route.City),
		logger.Int("probed", stats.Probed),
		logger.Int("valid", stats.Valid),
		logger.Int("target_terms", len(terms)))

	var opts []models.RoomOption
	rooms := map[string][]roomPrice{}
	for _, term := range terms {
		if !q.AllYears && !term.InAcademicYear(q.AcademicYear) {
			continue
		}
		prop, found := index.Lookup(term.Name)
		if !found {
			prop = models.PropertyRef{Slug: strings.ReplaceAll(strings.ToLower(term.PropertyName), " ", "-")}
		}
		if _, fetched := rooms[prop.Slug]; !fetched {
			rooms[prop.Slug] = p.propertyRooms(ctx, prop)
		}
		for _, room := range rooms[prop.Slug] {
			opts = append(opts, p.buildOption(term, prop, room, route, q))
		}
	}
	return opts, scanErr
}

// propertyRooms fetches a property page once and reads its room types.
func (p *Provider) propertyRooms(ctx context.Context, prop models.PropertyRef) []roomPrice {
	if prop.URL == "" {
		return []roomPrice{unknownRoom()}
	}
	body, err := p.fetch(ctx, prop.URL)
	if err != nil {
		p.log.Warn("Property page unavailable", logger.String("url", prop.URL), logger.Err(err))
		return []roomPrice{unknownRoom()}
	}
	return extractRooms(body)
}

func (p *Provider) buildOption(term Term, prop models.PropertyRef, room roomPrice, route Route, q provider.Query) models.RoomOption {
	start, end := term.Dates()
	year := q.AcademicYear
	if q.AllYears {
		if y, ok := term.AcademicYear(); ok {
			year = y
		}
	}

	o := models.RoomOption{
		Provider:     models.ProviderAparto,
		PropertyName: term.PropertyName,
		PropertySlug: prop.Slug,
		RoomType:     room.RoomType,
		PriceWeekly:  room.Weekly,
		PriceLabel:   room.Label,
		Available:    true,
		BookingURL:   term.URL,
		AcademicYear: year.Label(),
		OptionName:   term.Name,
		Location:     prop.Location,
		Ref: models.SourceRef{
			TermID:  term.ID,
			Weeks:   term.Weeks,
			City:    route.City,
			Country: route.Country,
		},
	}
	rt := strings.ToLower(room.RoomType)
	switch {
	case strings.Contains(rt, "studio"):
		o.PrivateBathroom = models.BoolPtr(true)
		o.PrivateKitchen = models.BoolPtr(true)
	case strings.Contains(rt, "ensuite"), strings.Contains(rt, "en-suite"):
		o.PrivateBathroom = models.BoolPtr(true)
	}
	return o.WithDates(start, end)
}
