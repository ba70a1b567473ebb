package notifier

import (
	"fmt"
	"strings"

	"student-rooms/internal/models"
)

const maxAlternatives = 5

// AlertOptions tweaks BuildAlertMessage.
type AlertOptions struct {
	// AllOptions switches the header to plain availability.
	AllOptions bool
	// Reminder marks a resend of already known matches.
	Reminder bool
	// Booking, when set, adds its primary link below the top match.
	Booking *models.BookingContext
}

// BuildAlertMessage renders the aggregated alert for ranked matches. It
// returns "" when there is nothing to report.
func BuildAlertMessage(matches []models.RoomOption, opts AlertOptions) string {
	if len(matches) == 0 {
		return ""
	}

	flag := "🚨 NEW"
	if opts.Reminder {
		flag = "🔁 REMINDER"
	}
	header := "Semester 1 detected"
	if opts.AllOptions {
		header = "Availability detected"
	}

	lines := []string{
		fmt.Sprintf("%s · Student Rooms · %s", flag, header),
		"",
		"⭐ Top match:",
	}
	lines = append(lines, matches[0].AlertLines()...)
	if opts.Booking != nil {
		if link := opts.Booking.PrimaryLink(); link != "" {
			lines = append(lines, "🔗 Book: "+link)
		}
	}

	if len(matches) > 1 {
		lines = append(lines, "", fmt.Sprintf("📋 %d total options (top %d alternatives):", len(matches), maxAlternatives))
		end := min(len(matches), 1+maxAlternatives)
		for i, m := range matches[1:end] {
			lines = append(lines, fmt.Sprintf("  %d. [%s] %s | %s | %s",
				i+2, strings.ToUpper(m.Provider), m.PropertyName, m.RoomType, m.PriceText()))
		}
	}
	return strings.Join(lines, "\n")
}
