package models

// BookingLink is a labelled deep link returned by a booking probe.
type BookingLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BookingContext is what a booking probe learned about one option.
type BookingContext struct {
	Option            RoomOption     `json:"option"`
	AvailableBeds     int            `json:"availableBeds"`
	Links             []BookingLink  `json:"links"`
	PortalRedirectURL string         `json:"portalRedirectUrl,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
}

// PrimaryLink returns the most useful link to book with, preferring the
// portal redirect.
func (b BookingContext) PrimaryLink() string {
	if b.PortalRedirectURL != "" {
		return b.PortalRedirectURL
	}
	for _, l := range b.Links {
		if l.URL != "" {
			return l.URL
		}
	}
	return ""
}

// AddLink appends a link when url is non-empty.
func (b *BookingContext) AddLink(label, url string) {
	if url == "" {
		return
	}
	b.Links = append(b.Links, BookingLink{Label: label, URL: url})
}
