package scan

import (
	"sort"

	"student-rooms/internal/models"
)

// Rank orders options in place: ensuite rooms first, then by ascending
// weekly price with unknown prices last, then by dedup key.
func Rank(options []models.RoomOption) {
	sort.SliceStable(options, func(i, j int) bool {
		return less(options[i], options[j])
	})
}

func less(a, b models.RoomOption) bool {
	if ea, eb := a.HasEnsuite(), b.HasEnsuite(); ea != eb {
		return ea
	}
	pa, pb := a.PriceWeekly, b.PriceWeekly
	switch {
	case pa.Valid && !pb.Valid:
		return true
	case !pa.Valid && pb.Valid:
		return false
	case pa.Valid && pb.Valid && !pa.Decimal.Equal(pb.Decimal):
		return pa.Decimal.LessThan(pb.Decimal)
	}
	return a.DedupKey() < b.DedupKey()
}
