package matching

import (
	"github.com/shopspring/decimal"

	"student-rooms/internal/models"
)

// Filters are optional room constraints applied after the semester policy.
// A nil field means "don't care".
type Filters struct {
	PrivateBathroom *bool
	PrivateKitchen  *bool
	MaxWeeklyPrice  *decimal.Decimal
	MaxMonthlyPrice *decimal.Decimal
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.PrivateBathroom == nil && f.PrivateKitchen == nil &&
		f.MaxWeeklyPrice == nil && f.MaxMonthlyPrice == nil
}

// Allow reports whether opt passes every set filter. Unknown metadata
// fails an explicit filter.
func (f Filters) Allow(opt models.RoomOption) bool {
	if f.PrivateBathroom != nil {
		if opt.PrivateBathroom == nil || *opt.PrivateBathroom != *f.PrivateBathroom {
			return false
		}
	}
	if f.PrivateKitchen != nil {
		if opt.PrivateKitchen == nil || *opt.PrivateKitchen != *f.PrivateKitchen {
			return false
		}
	}
	if f.MaxWeeklyPrice != nil {
		if !opt.PriceWeekly.Valid || opt.PriceWeekly.Decimal.GreaterThan(*f.MaxWeeklyPrice) {
			return false
		}
	}
	if f.MaxMonthlyPrice != nil {
		monthly := opt.PriceMonthly()
		if !monthly.Valid || monthly.Decimal.GreaterThan(*f.MaxMonthlyPrice) {
			return false
		}
	}
	return true
}

// Apply returns the options that pass f, preserving order.
func (f Filters) Apply(options []models.RoomOption) []models.RoomOption {
	if f.Empty() {
		return options
	}
	out := make([]models.RoomOption, 0, len(options))
	for _, opt := range options {
		if f.Allow(opt) {
			out = append(out, opt)
		}
	}
	return out
}
