package yugo

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider"
)

const jsDateLayout = "Mon Jan 02 2006 00:00:00 GMT+0000 (UTC)"

// ProbeBooking walks the Yugo booking flow for opt up to the student portal
// handover and returns the links it collected. Nothing is reserved.
func (p *Provider) ProbeBooking(ctx context.Context, opt models.RoomOption) (models.BookingContext, error) {
	ref := opt.Ref
	if ref.ResidenceID == "" || ref.RoomID == "" || ref.OptionID == "" {
		return models.BookingContext{}, fmt.Errorf("yugo probe: %w: missing residence, room or option id", provider.ErrIncompleteOption)
	}
	if opt.StartDate == nil || opt.EndDate == nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: %w: missing tenancy dates", provider.ErrIncompleteOption)
	}
	log := p.log.With(logger.String("residence", opt.PropertyName), logger.String("option", opt.OptionName))

	if err := p.client.warmBookingFlow(ctx, ref.ResidenceContentID); err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: booking flow page: %w", err)
	}

	property, err := p.client.residenceProperty(ctx, ref.ResidenceID)
	if err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: residence property: %w", err)
	}
	buildingIDs, floorIndexes := buildingsAndFloors(property)
	if len(buildingIDs) == 0 || len(floorIndexes) == 0 {
		return models.BookingContext{}, fmt.Errorf("yugo probe: %w: no building or floor metadata", provider.ErrIncompleteOption)
	}

	startJS := opt.StartDate.Time().Format(jsDateLayout)
	endJS := opt.EndDate.Time().Format(jsDateLayout)
	flatmates := ref.MaxBedsInFlat
	if flatmates <= 0 {
		flatmates = 7
	}
	floors := make([]string, len(floorIndexes))
	for i, idx := range floorIndexes {
		floors[i] = strconv.Itoa(idx)
	}

	common := map[string]string{
		"roomTypeId":          ref.RoomID,
		"residenceExternalId": ref.ResidenceID,
		"tenancyOptionId":     ref.OptionID,
		"tenancyStartDate":    startJS,
		"tenancyEndDate":      endJS,
		"academicYearId":      ref.AcademicYearID,
		"maxNumOfFlatmates":   strconv.Itoa(flatmates),
		"buildingIds":         strings.Join(buildingIDs, ","),
		"floorIndexes":        strings.Join(floors, ","),
	}

	available, err := p.client.availableBeds(ctx, common)
	if err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: available beds: %w", err)
	}

	flatParams := make(map[string]string, len(common)+5)
	for k, v := range common {
		flatParams[k] = v
	}
	flatParams["sortDirection"] = "false"
	flatParams["pageNumber"] = "1"
	flatParams["pageSize"] = "6"
	flatParams["totalPriceOriginal"] = "0"
	flatParams["pricePerNightOriginal"] = ref.PricePerNight

	flats, err := p.client.flatsWithBeds(ctx, flatParams)
	if err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: flats with beds: %w", err)
	}
	bedID, flatID, beds := firstFreeBed(flats)

	skip, err := p.client.skipRoomSelection(ctx, common)
	if err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: skip room selection: %w", err)
	}

	handover, err := p.client.studentPortalRedirect(ctx, map[string]string{
		"roomTypeId":          ref.RoomID,
		"residenceExternalId": ref.ResidenceID,
		"tenancyOptionId":     ref.OptionID,
		"tenancyStartDate":    startJS,
		"tenancyEndDate":      endJS,
		"academicYearId":      ref.AcademicYearID,
		"bedId":               bedID,
		"flatId":              flatID,
		"currencyCode":        "EUR",
	})
	if err != nil {
		return models.BookingContext{}, fmt.Errorf("yugo probe: portal redirect: %w", err)
	}

	bc := models.BookingContext{
		Option:            opt,
		AvailableBeds:     beds,
		PortalRedirectURL: handover.LinkToRedirect,
		Details: map[string]any{
			"commonParams":   common,
			"selectedBedId":  bedID,
			"selectedFlatId": flatID,
			"floorsReturned": len(flats.Flats.Floors),
			"availableBeds":  available,
		},
	}
	bc.AddLink("Skip room selection", skip.LinkToRedirect)
	bc.AddLink("Portal handover", handover.LinkToRedirect)
	bc.AddLink("Residence portal", ref.PortalLink)
	bc.AddLink("Payment", ref.PaymentLink)

	log.Info("Booking probe complete",
		logger.Int("beds", beds),
		logger.Bool("handover", handover.LinkToRedirect != ""))
	return bc, nil
}

func buildingsAndFloors(rp residenceProperty) ([]string, []int) {
	var ids []string
	seen := map[int]bool{}
	var floors []int
	for _, b := range rp.Property.Buildings {
		if b.ID != "" {
			ids = append(ids, b.ID.String())
		}
		for _, f := range b.Floors {
			v, err := strconv.ParseFloat(strings.TrimSpace(f.Index.String()), 64)
			if err != nil {
				continue
			}
			if idx := int(v); !seen[idx] {
				seen[idx] = true
				floors = append(floors, idx)
			}
		}
	}
	slices.Sort(floors)
	return ids, floors
}

// firstFreeBed returns the first bed and its flat, plus the total number of
// beds listed.
func firstFreeBed(f flatsWithBeds) (bedID, flatID string, total int) {
	for _, floor := range f.Flats.Floors {
		for _, flat := range floor.Flats {
			total += len(flat.Beds)
			if bedID != "" || len(flat.Beds) == 0 {
				continue
			}
			bed := flat.Beds[0]
			bedID = firstNonEmpty(bed.BedID.String(), bed.ID.String())
			flatID = flat.ID.String()
		}
	}
	return bedID, flatID, total
}
