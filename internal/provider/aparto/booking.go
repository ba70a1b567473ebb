package aparto

import (
	"context"
	"fmt"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

// ProbeBooking re-probes the option's term on the portal and returns the
// entry portal, the property page and the term deep link.
func (p *Provider) ProbeBooking(ctx context.Context, opt models.RoomOption) (models.BookingContext, error) {
	if opt.Ref.TermID == 0 {
		return models.BookingContext{}, fmt.Errorf("aparto probe: %w: missing term id", provider.ErrIncompleteOption)
	}
	route, err := ResolveRoute(opt.Ref.City, opt.Ref.Country)
	if err != nil {
		return models.BookingContext{}, err
	}
	portal, ok := p.cfg.PortalBases[route.Region]
	if !route.HasPortal() || !ok {
		return models.BookingContext{}, fmt.Errorf("aparto probe %s (%s): %w", route.City, route.Country, ErrNoPortal)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.establishSession(ctx, route); err != nil {
		return models.BookingContext{}, fmt.Errorf("aparto probe session: %w", err)
	}
	term, valid := p.probeTerm(ctx, portal, opt.Ref.TermID)
	if err := ctx.Err(); err != nil {
		return models.BookingContext{}, err
	}

	bc := models.BookingContext{
		Option: opt,
		Details: map[string]any{
			"termId":        opt.Ref.TermID,
			"termAvailable": valid,
			"city":          route.City,
			"country":       route.Country,
		},
	}
	bc.AddLink("Booking portal", p.cfg.EntryURL)
	if opt.PropertySlug != "" {
		bc.AddLink("Property page", fmt.Sprintf("%s/locations/%s/%s", p.cfg.MainBaseURL, route.Slug, opt.PropertySlug))
	}
	if valid {
		bc.PortalRedirectURL = term.URL
		bc.AddLink("Term", term.URL)
		bc.Details["termName"] = term.Name
		bc.Details["weeks"] = term.Weeks
		if start, end := term.Dates(); start != nil && end != nil {
			bc.Details["startDate"] = start.String()
			bc.Details["endDate"] = end.String()
		}
	}

	p.log.Info("Booking probe complete",
		logger.Int("term_id", opt.Ref.TermID),
		logger.Bool("term_available", valid))
	return bc, nil
}
