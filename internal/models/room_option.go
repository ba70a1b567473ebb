package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider names
const (
	ProviderYugo   = "yugo"
	ProviderAparto = "aparto"
)

// ErrInvalidDateRange is returned when a tenancy starts after it ends.
var ErrInvalidDateRange = errors.New("start date is after end date")

// weeksPerMonth converts between weekly and monthly prices.
var weeksPerMonth = decimal.NewFromFloat(4.33)

// Location is the target a scan runs against.
type Location struct {
	Country   string `json:"country"`
	City      string `json:"city"`
	CountryID string `json:"countryId,omitempty"`
	CityID    string `json:"cityId,omitempty"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s, %s", l.City, l.Country)
}

// PropertyRef is a residence discovered for a location.
type PropertyRef struct {
	Provider string `json:"provider"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// SourceRef holds the upstream identifiers a booking probe needs to
// revisit an option.
type SourceRef struct {
	ResidenceID        string `json:"residenceId,omitempty"`
	ResidenceContentID string `json:"residenceContentId,omitempty"`
	RoomID             string `json:"roomId,omitempty"`
	OptionID           string `json:"optionId,omitempty"`
	AcademicYearID     string `json:"academicYearId,omitempty"`
	FromYear           int    `json:"fromYear,omitempty"`
	ToYear             int    `json:"toYear,omitempty"`
	MaxBedsInFlat      int    `json:"maxBedsInFlat,omitempty"`
	PricePerNight      string `json:"pricePerNight,omitempty"`
	PortalLink         string `json:"portalLink,omitempty"`
	PaymentLink        string `json:"paymentLink,omitempty"`

	TermID  int    `json:"termId,omitempty"`
	Weeks   int    `json:"weeks,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// RoomOption is one normalised tenancy offer. Values are built fresh on
// every scan and never modified afterwards.
type RoomOption struct {
	Provider        string              `json:"provider"`
	PropertyName    string              `json:"propertyName"`
	PropertySlug    string              `json:"propertySlug"`
	RoomType        string              `json:"roomType"`
	PriceWeekly     decimal.NullDecimal `json:"priceWeekly"`
	PriceLabel      string              `json:"priceLabel,omitempty"`
	Available       bool                `json:"available"`
	BookingURL      string              `json:"bookingUrl,omitempty"`
	StartDate       *Date               `json:"startDate,omitempty"`
	EndDate         *Date               `json:"endDate,omitempty"`
	AcademicYear    string              `json:"academicYear"`
	OptionName      string              `json:"optionName"`
	Location        string              `json:"location,omitempty"`
	PrivateBathroom *bool               `json:"privateBathroom,omitempty"`
	PrivateKitchen  *bool               `json:"privateKitchen,omitempty"`
	Ref             SourceRef           `json:"ref"`
}

// DedupKey identifies the underlying offer across scans. Price and
// availability are deliberately not part of it.
func (o RoomOption) DedupKey() string {
	return strings.Join([]string{
		o.Provider,
		o.PropertySlug,
		strings.ToLower(strings.TrimSpace(o.RoomType)),
		o.AcademicYear,
		o.OptionName,
	}, "|")
}

// Validate checks the date range invariant.
func (o RoomOption) Validate() error {
	if o.StartDate != nil && o.EndDate != nil && o.StartDate.After(*o.EndDate) {
		return fmt.Errorf("%s: %w", o.DedupKey(), ErrInvalidDateRange)
	}
	return nil
}

// NewRoomOption returns o if its date range is valid.
func NewRoomOption(o RoomOption) (RoomOption, error) {
	if err := o.Validate(); err != nil {
		return RoomOption{}, err
	}
	return o, nil
}

// WithDates returns a copy with the given range, dropping both dates when
// they are reversed.
func (o RoomOption) WithDates(start, end *Date) RoomOption {
	o.StartDate, o.EndDate = start, end
	if o.Validate() != nil {
		o.StartDate, o.EndDate = nil, nil
	}
	return o
}

// HasEnsuite reports whether the room has a private-bathroom signal.
func (o RoomOption) HasEnsuite() bool {
	if o.PrivateBathroom != nil && *o.PrivateBathroom {
		return true
	}
	rt := strings.ToLower(o.RoomType)
	return strings.Contains(rt, "ensuite") ||
		strings.Contains(rt, "en-suite") ||
		strings.Contains(rt, "en suite") ||
		strings.Contains(rt, "private bathroom")
}

// PriceMonthly approximates the monthly price from the weekly one.
func (o RoomOption) PriceMonthly() decimal.NullDecimal {
	if !o.PriceWeekly.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(o.PriceWeekly.Decimal.Mul(weeksPerMonth))
}

// PriceText renders the weekly price, falling back to the raw label.
func (o RoomOption) PriceText() string {
	if o.PriceWeekly.Valid && o.PriceWeekly.Decimal.IsPositive() {
		return "€" + o.PriceWeekly.Decimal.StringFixed(0) + "/week"
	}
	if o.PriceLabel != "" {
		return o.PriceLabel
	}
	return "N/A"
}

// AlertLines returns the human readable summary used in notifications.
func (o RoomOption) AlertLines() []string {
	lines := []string{
		fmt.Sprintf("🏠 %s (%s)", o.PropertyName, strings.ToUpper(o.Provider)),
		"🛏 " + o.RoomType,
		"💶 " + o.PriceText(),
	}
	if o.StartDate != nil || o.EndDate != nil {
		lines = append(lines, fmt.Sprintf("📅 %s → %s", dateOrUnknown(o.StartDate), dateOrUnknown(o.EndDate)))
	}
	if o.OptionName != "" {
		lines = append(lines, "📋 "+o.OptionName)
	}
	if o.Location != "" {
		lines = append(lines, "📍 "+o.Location)
	}
	if o.BookingURL != "" {
		lines = append(lines, "🔗 "+o.BookingURL)
	}
	return lines
}

// MarshalJSON adds the derived dedupKey to the encoded option.
func (o RoomOption) MarshalJSON() ([]byte, error) {
	type plain RoomOption
	return json.Marshal(struct {
		plain
		DedupKey string `json:"dedupKey"`
	}{plain: plain(o), DedupKey: o.DedupKey()})
}

func dateOrUnknown(d *Date) string {
	if d == nil {
		return "?"
	}
	return d.String()
}

// WeeklyFromMonthly converts a monthly price to a weekly one.
func WeeklyFromMonthly(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Div(weeksPerMonth).Round(2)
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
