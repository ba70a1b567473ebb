package aparto

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"student-rooms/internal/logger"
	"student-rooms/internal/provider"
)

// establishSession walks the EU entry portal to the route's country so the
// cookie jar holds a session the regional portal accepts.
func (p *Provider) establishSession(ctx context.Context, route Route) error {
	entry, err := p.fetch(ctx, p.cfg.EntryURL)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(entry))
	if err != nil {
		return provider.ShapeChanged("parse entry page: %v", err)
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return provider.ShapeChanged("entry page has no form")
	}

	fields := map[string]string{}
	doc.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		value, _ := in.Attr("value")
		fields[name] = value
	})
	fields["CheckOrderList"] = route.CountryID
	action, _ := form.Attr("action")

	resp, err := p.http.R().SetContext(ctx).SetFormData(fields).Post(p.cfg.PortalEUBase + action)
	if err != nil {
		return provider.Unavailable("select country: %v", err)
	}
	if err := provider.StatusError(resp.StatusCode(), "select country"); err != nil {
		return err
	}
	redirect := strings.Trim(strings.TrimSpace(resp.String()), `"`)
	if !strings.HasPrefix(redirect, "/") {
		return provider.ShapeChanged("unexpected country redirect %.100q", resp.String())
	}

	if _, err := p.fetch(ctx, p.cfg.PortalOrigin+redirect); err != nil {
		return err
	}
	p.log.Debug("StarRez session established",
		logger.String("country", route.Country),
		logger.String("country_id", route.CountryID))
	return nil
}

// fetch GETs url and returns the body of a 2xx answer.
func (p *Provider) fetch(ctx context.Context, url string) (string, error) {
	resp, err := p.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", provider.Unavailable("GET %s: %v", url, err)
	}
	if err := provider.StatusError(resp.StatusCode(), "GET "+url); err != nil {
		return "", err
	}
	return resp.String(), nil
}
