package aparto

import (
	"fmt"
	"sort"
	"strings"

	"student-rooms/internal/provider"
)

// Public endpoints.
const (
	MainBaseURL     = "https://apartostudent.com"
	PortalOrigin    = "https://portal.apartostudent.com"
	PortalEUBase    = PortalOrigin + "/StarRezPortalXEU"
	EntryURL        = PortalEUBase + "/F33813C2/65/1556/Book_a_room-Choose_Your_Country?UrlToken=8E2FC74D"
	PortalIEBase    = "https://apartostudent.starrezhousing.com/StarRezPortal"
	PortalUKBase    = "https://apartostudentuk.starrezhousing.com/StarRezPortal"
	portalRegionIE  = "IE"
	portalRegionUK  = "UK"
	defaultCitySlug = "dublin"
)

// ErrNoPortal is returned for countries without a StarRez booking portal.
var ErrNoPortal = fmt.Errorf("no StarRez portal: %w", provider.ErrNotSupported)

type portalRoute struct {
	region    string
	countryID string
}

// countryPortals maps a country to its StarRez region. Ireland, Spain and
// Italy share one term pool.
var countryPortals = map[string]*portalRoute{
	"Ireland": {region: portalRegionIE, countryID: "1"},
	"Spain":   {region: portalRegionIE, countryID: "4"},
	"Italy":   {region: portalRegionIE, countryID: "0"},
	"UK":      {region: portalRegionUK, countryID: "3"},
	"France":  nil,
}

var countryAliases = map[string]string{
	"united kingdom": "UK",
	"great britain":  "UK",
	"england":        "UK",
	"scotland":       "UK",
}

var cityCountry = map[string]string{
	"Dublin":          "Ireland",
	"Barcelona":       "Spain",
	"Milan":           "Italy",
	"Florence":        "Italy",
	"Paris":           "France",
	"Aberdeen":        "UK",
	"Brighton":        "UK",
	"Bristol":         "UK",
	"Cambridge":       "UK",
	"Glasgow":         "UK",
	"Kingston":        "UK",
	"Kingston-London": "UK",
	"Lancaster":       "UK",
	"Oxford":          "UK",
	"Reading":         "UK",
}

var citySlugs = map[string]string{
	"Kingston":        "kingston-london",
	"Kingston-London": "kingston-london",
}

// Route is where a city lives on the Aparto sites.
type Route struct {
	City      string
	Country   string
	Slug      string
	Region    string
	CountryID string
}

// HasPortal reports whether the city's country can be probed.
func (r Route) HasPortal() bool { return r.Region != "" }

// Cities returns the supported city names, aliases excluded.
func Cities() []string {
	out := make([]string, 0, len(cityCountry))
	for city := range cityCountry {
		if city == "Kingston-London" {
			continue
		}
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}

// ResolveRoute maps a city, and optionally a country override, onto the
// routing tables.
func ResolveRoute(city, country string) (Route, error) {
	canonicalCity, cityCountryName, ok := lookupFold(cityCountry, strings.TrimSpace(city))
	if !ok {
		canonicalCity = strings.TrimSpace(city)
	}

	countryName := ""
	if c := canonicalCountry(country); c != "" {
		countryName = c
	} else if ok {
		countryName = cityCountryName
	}
	if countryName == "" {
		return Route{}, fmt.Errorf("aparto city %q: %w", city, provider.ErrLocationNotFound)
	}

	slug, hasSlug := citySlugs[canonicalCity]
	if !hasSlug {
		slug = strings.ReplaceAll(strings.ToLower(canonicalCity), " ", "-")
	}
	if slug == "" {
		slug = defaultCitySlug
	}

	r := Route{City: canonicalCity, Country: countryName, Slug: slug}
	if p := countryPortals[countryName]; p != nil {
		r.Region = p.region
		r.CountryID = p.countryID
	}
	return r, nil
}

func canonicalCountry(country string) string {
	country = strings.TrimSpace(country)
	if country == "" {
		return ""
	}
	if alias, ok := countryAliases[strings.ToLower(country)]; ok {
		return alias
	}
	for name := range countryPortals {
		if strings.EqualFold(name, country) {
			return name
		}
	}
	return ""
}

func lookupFold(m map[string]string, key string) (string, string, bool) {
	if v, ok := m[key]; ok {
		return key, v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return k, v, true
		}
	}
	return "", "", false
}
