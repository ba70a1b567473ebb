package aparto

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

var addressRe = regexp.MustCompile(`(?i)((?:Carrer|Calle|Via|Rue|Street|St|Rd|Road|Square|Place|Point|Tce|Terrace)\s+[^,\n]{3,50}(?:,\s*[^,\n]{3,30})?)`)

// discoverProperties scrapes the city page for links to its properties.
func (p *Provider) discoverProperties(ctx context.Context, route Route) ([]models.PropertyRef, error) {
	url := fmt.Sprintf("%s/locations/%s", p.cfg.MainBaseURL, route.Slug)
	body, err := p.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("aparto city page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, provider.ShapeChanged("parse %s: %v", url, err)
	}

	linkRe := regexp.MustCompile(`^` + regexp.QuoteMeta(p.cfg.MainBaseURL) + `/locations/` + regexp.QuoteMeta(route.Slug) + `/([a-z0-9-]+)/?$`)
	var props []models.PropertyRef
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasPrefix(href, "http") {
			href = p.cfg.MainBaseURL + href
		}
		m := linkRe.FindStringSubmatch(strings.TrimRight(href, "/"))
		if m == nil {
			return
		}
		slug := m[1]
		if seen[slug] || slug == "short-stays" {
			return
		}
		seen[slug] = true

		props = append(props, models.PropertyRef{
			Provider: models.ProviderAparto,
			Slug:     slug,
			Name:     titleCase(strings.ReplaceAll(slug, "-", " ")),
			Location: addressNear(a),
			URL:      fmt.Sprintf("%s/locations/%s/%s", p.cfg.MainBaseURL, route.Slug, slug),
			City:     route.City,
			Country:  route.Country,
		})
	})

	if len(props) == 0 {
		return nil, provider.ShapeChanged("no properties on %s", url)
	}
	return props, nil
}

// addressNear looks for a street address in the card around a property
// link. Containers holding several property links are ignored.
func addressNear(a *goquery.Selection) string {
	card := a.Closest("div, section, article")
	if card.Length() == 0 || card.Find("a[href]").Length() > 1 {
		return ""
	}
	text := strings.Join(strings.Fields(card.Text()), " ")
	if m := addressRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
