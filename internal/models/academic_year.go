package models

import (
	"fmt"
	"time"
)

// AcademicYear is a start/end year pair such as 2026/2027.
type AcademicYear struct {
	StartYear int `json:"startYear"`
	EndYear   int `json:"endYear"`
}

// CurrentAcademicYear returns the academic year in progress at now.
// From August onwards the upcoming year is considered current.
func CurrentAcademicYear(now time.Time) AcademicYear {
	if now.Month() >= time.August {
		return AcademicYear{StartYear: now.Year(), EndYear: now.Year() + 1}
	}
	return AcademicYear{StartYear: now.Year() - 1, EndYear: now.Year()}
}

// IsZero reports whether no year is set.
func (a AcademicYear) IsZero() bool {
	return a.StartYear == 0 && a.EndYear == 0
}

// Label returns the "2026-27" form, or "" for the zero value.
func (a AcademicYear) Label() string {
	if a.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%02d", a.StartYear, a.EndYear%100)
}

// Short returns the "26/27" form used in StarRez term names.
func (a AcademicYear) Short() string {
	return fmt.Sprintf("%02d/%02d", a.StartYear%100, a.EndYear%100)
}

// Contains reports whether a tenancy from start to end sits in this
// academic year. The end may roll over into EndYear.
func (a AcademicYear) Contains(start, end Date) bool {
	if start.Year != a.StartYear {
		return false
	}
	return end.Year == a.StartYear || end.Year == a.EndYear
}
