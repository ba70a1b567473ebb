// Package matching decides whether a room option is the semester the user
// is looking for.
package matching

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"student-rooms/internal/models"
)

// Spec describes which tenancy shape counts as a match.
type Spec struct {
	StartYear          int
	EndYear            int
	NameKeywords       []string
	RequireKeyword     bool
	EnforceMonthWindow bool
	StartMonths        []int
	EndMonths          []int
}

// DefaultSpec returns the Semester 1 rules for the academic year current at now.
func DefaultSpec(now time.Time) Spec {
	ay := models.CurrentAcademicYear(now)
	return Spec{
		StartYear:          ay.StartYear,
		EndYear:            ay.EndYear,
		NameKeywords:       []string{"semester 1"},
		RequireKeyword:     true,
		EnforceMonthWindow: true,
		StartMonths:        []int{9, 10},
		EndMonths:          []int{1, 2},
	}
}

// AcademicYear returns the StartYear/EndYear pair as an AcademicYear.
func (s Spec) AcademicYear() models.AcademicYear {
	return models.AcademicYear{StartYear: s.StartYear, EndYear: s.EndYear}
}

// Verdict is the outcome of Match with a short explanation.
type Verdict struct {
	Match  bool   `json:"match"`
	Reason string `json:"reason"`
}

func match(reason string) Verdict   { return Verdict{Match: true, Reason: reason} }
func noMatch(reason string) Verdict { return Verdict{Match: false, Reason: reason} }

// Match classifies an option against spec. It has no side effects.
func Match(opt models.RoomOption, spec Spec) Verdict {
	return Evaluate(opt.OptionName, opt.StartDate, opt.EndDate, spec)
}

// Evaluate classifies a raw (name, start, end) triple.
func Evaluate(name string, start, end *models.Date, spec Spec) Verdict {
	keyword, hasKeyword := findKeyword(name, spec.NameKeywords)
	if spec.RequireKeyword && !hasKeyword {
		return noMatch("no keyword in option name")
	}

	hasDates := start != nil && end != nil
	if hasDates {
		if ok, reason := datesAgree(*start, *end, spec); !ok {
			return noMatch(reason)
		}
	}

	switch {
	case hasKeyword && hasDates:
		return match(fmt.Sprintf("keyword %q and dates agree", keyword))
	case hasKeyword:
		return match(fmt.Sprintf("keyword %q, dates unavailable", keyword))
	case hasDates:
		return match("date window agrees")
	default:
		return noMatch("neither keyword nor complete dates")
	}
}

func findKeyword(name string, keywords []string) (string, bool) {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func datesAgree(start, end models.Date, spec Spec) (bool, string) {
	if start.After(end) {
		return false, "start date after end date"
	}
	if spec.EnforceMonthWindow {
		if !slices.Contains(spec.StartMonths, int(start.Month)) {
			return false, fmt.Sprintf("start month %d outside window", start.Month)
		}
		if !slices.Contains(spec.EndMonths, int(end.Month)) {
			return false, fmt.Sprintf("end month %d outside window", end.Month)
		}
	}
	if !spec.AcademicYear().Contains(start, end) {
		return false, fmt.Sprintf("dates %s..%s outside academic year %s", start, end, spec.AcademicYear().Label())
	}
	return true, ""
}
