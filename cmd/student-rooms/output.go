package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"student-rooms/internal/models"
	"student-rooms/internal/scan"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func dateCell(d *models.Date) string {
	if d == nil {
		return "?"
	}
	return d.String()
}

func renderOptions(w io.Writer, options []models.RoomOption) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Provider", "Property", "Room", "Price", "Start", "End", "Tenancy"})
	for i, o := range options {
		t.AppendRow(table.Row{i, o.Provider, o.PropertyName, o.RoomType, o.PriceText(), dateCell(o.StartDate), dateCell(o.EndDate), o.OptionName})
	}
	t.Render()
}

func renderProviderErrors(w io.Writer, errs []scan.ProviderError) {
	if len(errs) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Provider errors")
	t.AppendHeader(table.Row{"Provider", "Kind", "Message"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Provider, e.Kind, e.Message})
	}
	t.Render()
}

func renderProperties(w io.Writer, refs []models.PropertyRef) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Provider", "Property", "Slug", "Location", "URL"})
	for _, r := range refs {
		t.AppendRow(table.Row{r.Provider, r.Name, r.Slug, r.Location, r.URL})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d properties", len(refs))})
	t.Render()
}

func renderBooking(w io.Writer, bc models.BookingContext) {
	o := bc.Option
	t := newTable(w)
	t.SetTitle("Booking probe OK")
	t.AppendRows([]table.Row{
		{"Provider", o.Provider},
		{"Property", o.PropertyName},
		{"Room", o.RoomType},
		{"Tenancy", o.OptionName},
		{"Dates", dateCell(o.StartDate) + " → " + dateCell(o.EndDate)},
		{"Price", o.PriceText()},
	})
	if bc.AvailableBeds > 0 {
		t.AppendRow(table.Row{"Available beds", bc.AvailableBeds})
	}
	if bc.PortalRedirectURL != "" {
		t.AppendRow(table.Row{"Portal redirect", bc.PortalRedirectURL})
	}
	for _, l := range bc.Links {
		t.AppendRow(table.Row{l.Label, l.URL})
	}
	t.Render()
}
