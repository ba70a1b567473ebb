package yugo

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// flexString accepts JSON strings, numbers and booleans. Objects, arrays
// and null decode to the empty string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '{', '[':
		*f = ""
	default:
		*f = flexString(b)
	}
	return nil
}

func (f flexString) String() string { return string(f) }

// flexInt accepts numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// flexPrice is a decimal that tolerates empty strings and garbage.
type flexPrice struct {
	decimal.NullDecimal
}

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(s)))
	if err != nil {
		p.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	p.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// Country is an entry of the countries endpoint.
type Country struct {
	ID        flexString `json:"id"`
	CountryID flexString `json:"countryId"`
	Name      string     `json:"name"`
}

// Key returns the id used by the cities endpoint.
func (c Country) Key() string {
	if c.CountryID != "" {
		return c.CountryID.String()
	}
	return c.ID.String()
}

// City is an entry of the cities endpoint.
type City struct {
	ID        flexString `json:"id"`
	ContentID flexString `json:"contentId"`
	Name      string     `json:"name"`
}

// Key returns the id used by the residences endpoint.
func (c City) Key() string {
	if c.ContentID != "" {
		return c.ContentID.String()
	}
	return c.ID.String()
}

// Residence is an entry of the residences endpoint.
type Residence struct {
	ID           flexString `json:"id"`
	ContentID    flexString `json:"contentId"`
	Name         string     `json:"name"`
	PortalLink   string     `json:"portalLink"`
	PaymentLink  string     `json:"paymentLink"`
	LocationInfo flexString `json:"locationInfo"`
}

// Room is a room type of a residence.
type Room struct {
	ID                      flexString `json:"id"`
	Name                    string     `json:"name"`
	SoldOut                 *bool      `json:"soldOut"`
	PriceLabel              string     `json:"priceLabel"`
	MinPriceForBillingCycle flexPrice  `json:"minPriceForBillingCycle"`
	MinPricePerNight        flexPrice  `json:"minPricePerNight"`
	BathroomArrangement     string     `json:"bathroomArrangement"`
	KitchenArrangement      string     `json:"kitchenArrangement"`
	MaxNumOfBedsInFlat      flexInt    `json:"maxNumOfBedsInFlat"`
}

// TenancyGroup groups the tenancy options of one academic year.
type TenancyGroup struct {
	FromYear       flexInt         `json:"fromYear"`
	ToYear         flexInt         `json:"toYear"`
	AcademicYearID flexString      `json:"academicYearId"`
	Options        []TenancyOption `json:"tenancyOption"`
}

// TenancyOption is one bookable tenancy.
type TenancyOption struct {
	ID             flexString `json:"id"`
	Name           string     `json:"name"`
	FormattedLabel string     `json:"formattedLabel"`
	StartDate      string     `json:"startDate"`
	EndDate        string     `json:"endDate"`
	LinkToRedirect string     `json:"linkToRedirect"`
	TenancyLength  flexString `json:"tenancyLength"`
	Status         flexString `json:"status"`
}

type residenceProperty struct {
	Property struct {
		Buildings []struct {
			ID     flexString `json:"id"`
			Floors []struct {
				Index flexString `json:"index"`
			} `json:"floors"`
		} `json:"buildings"`
	} `json:"property"`
}

type flatsWithBeds struct {
	Flats struct {
		Floors []struct {
			Flats []struct {
				ID   flexString `json:"id"`
				Beds []struct {
					BedID flexString `json:"bedId"`
					ID    flexString `json:"id"`
				} `json:"beds"`
			} `json:"flats"`
		} `json:"floors"`
	} `json:"flats"`
}

type redirectLink struct {
	LinkToRedirect string `json:"linkToRedirect"`
}
