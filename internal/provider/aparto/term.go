package aparto

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"student-rooms/internal/models"
)

// Outcome is the classification of one term probe.
type Outcome int

const (
	// Invalid means the id is not a bookable term.
	Invalid Outcome = iota
	// Valid means the portal rendered a room selection page.
	Valid
	// Transient means the probe should be retried.
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Transient:
		return "transient"
	default:
		return "invalid"
	}
}

const validMarker = "Choose your room"

// ProbeResponse is what a term probe got back.
type ProbeResponse struct {
	Status int
	Body   string
	Err    error
}

// Classify decides what a probe response means. It does no I/O.
func Classify(r ProbeResponse) Outcome {
	if r.Err != nil {
		return Transient
	}
	switch {
	case r.Status == 403, r.Status == 408, r.Status == 425, r.Status == 429, r.Status >= 500:
		return Transient
	case r.Status == 200 && strings.Contains(r.Body, validMarker):
		return Valid
	default:
		return Invalid
	}
}

// Term is a booking term found by probing.
type Term struct {
	ID           int
	Name         string
	PropertyName string
	// Begin and End come from the dd/mm/yyyy sentence on the page.
	Begin, End *models.Date
	// StartISO and EndISO come from the data-datestart/data-dateend attributes.
	StartISO, EndISO *models.Date
	Weeks            int
	URL              string
}

var (
	termInfoRe = regexp.MustCompile(`(?s)You have selected '([^']+)' booking term.*?begins on (\d{2}/\d{2}/\d{4}).*?ends on (\d{2}/\d{2}/\d{4})`)
	weeksRe    = regexp.MustCompile(`(\d+)\s*[Ww]eek`)
	yearPairRe = regexp.MustCompile(`\b(\d{2})/(\d{2})\b`)
)

// parseTerm extracts the term details from a valid probe page.
func parseTerm(id int, body, url string) Term {
	t := Term{ID: id, Name: fmt.Sprintf("Term %d", id), URL: url}

	if m := termInfoRe.FindStringSubmatch(body); m != nil {
		t.Name = m[1]
		t.Begin = dayFirst(m[2])
		t.End = dayFirst(m[3])
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		el := doc.Find("[data-termid]").First()
		if v, ok := el.Attr("data-datestart"); ok {
			t.StartISO = isoDate(v)
		}
		if v, ok := el.Attr("data-dateend"); ok {
			t.EndISO = isoDate(v)
		}
	}

	t.PropertyName = propertyNameFromTerm(t.Name)
	t.Weeks = weeksFromName(t.Name)
	return t
}

// Dates returns the best known tenancy range, preferring the ISO attributes.
func (t Term) Dates() (*models.Date, *models.Date) {
	start, end := t.StartISO, t.EndISO
	if start == nil {
		start = t.Begin
	}
	if end == nil {
		end = t.End
	}
	return start, end
}

// AcademicYear derives the term's year from its start date, or from a
// "26/27" label in its name when the dates are missing.
func (t Term) AcademicYear() (models.AcademicYear, bool) {
	if start, _ := t.Dates(); start != nil {
		return models.CurrentAcademicYear(start.Time()), true
	}
	m := yearPairRe.FindStringSubmatch(t.Name)
	if m == nil {
		return models.AcademicYear{}, false
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if to != (from+1)%100 {
		return models.AcademicYear{}, false
	}
	return models.AcademicYear{StartYear: 2000 + from, EndYear: 2000 + from + 1}, true
}

// InAcademicYear reports whether the term belongs to year, either by the
// "26/27" label in its name or by its dates.
func (t Term) InAcademicYear(year models.AcademicYear) bool {
	if strings.Contains(t.Name, year.Short()) {
		return true
	}
	start, end := t.Dates()
	if start == nil || end == nil {
		return false
	}
	return year.Contains(*start, *end)
}

func weeksFromName(name string) int {
	m := weeksRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func dayFirst(s string) *models.Date {
	d, err := models.ParseDayFirst(s)
	if err != nil {
		return nil
	}
	return &d
}

func isoDate(s string) *models.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}
