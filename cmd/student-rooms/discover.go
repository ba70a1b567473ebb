package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/provider/aparto"
)

type namedID struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func discoverCmd(a *app) *cobra.Command {
	var countries, cities bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List properties, or Yugo countries and cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case countries:
				return a.listCountries(cmd)
			case cities:
				return a.listCities(cmd)
			}

			loc, err := a.location()
			if err != nil {
				return err
			}
			var (
				refs   []models.PropertyRef
				failed int
			)
			providers := a.providers()
			for _, p := range providers {
				found, err := p.Discover(cmd.Context(), loc)
				if err != nil {
					failed++
					a.log.Error("Discovery failed", logger.String("provider", p.Name()), logger.Err(err))
					fmt.Fprintf(a.stderr, "%s: %v\n", p.Name(), err)
					continue
				}
				refs = append(refs, found...)
			}
			if failed == len(providers) {
				return errors.New("discovery failed for every provider")
			}
			if a.opts.json {
				return writeJSON(a.stdout, refs)
			}
			renderProperties(a.stdout, refs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&countries, "countries", false, "List Yugo countries")
	cmd.Flags().BoolVar(&cities, "cities", false, "List Yugo cities for --country, and Aparto cities")
	cmd.MarkFlagsMutuallyExclusive("countries", "cities")
	return cmd
}

func (a *app) listCountries(cmd *cobra.Command) error {
	if a.yugo == nil {
		return errors.New("--countries needs the yugo provider")
	}
	list, err := a.yugo.Client().Countries(cmd.Context())
	if err != nil {
		return err
	}
	items := make([]namedID, 0, len(list))
	for _, c := range list {
		items = append(items, namedID{ID: c.Key(), Name: c.Name})
	}
	return a.printNamed("Yugo countries", items)
}

func (a *app) listCities(cmd *cobra.Command) error {
	var items []namedID
	if a.yugo != nil {
		loc := a.cfg.Location()
		if loc.Country == "" && loc.CountryID == "" {
			return errors.New("--cities needs --country or --country-id for yugo")
		}
		countryID, err := a.yugo.ResolveCountry(cmd.Context(), loc)
		if err != nil {
			return err
		}
		list, err := a.yugo.Client().Cities(cmd.Context(), countryID)
		if err != nil {
			return err
		}
		for _, c := range list {
			items = append(items, namedID{ID: c.Key(), Name: c.Name})
		}
	}
	if _, err := a.registry.Get(models.ProviderAparto); err == nil {
		for _, city := range aparto.Cities() {
			items = append(items, namedID{ID: "aparto", Name: city})
		}
	}
	return a.printNamed("Cities", items)
}

func (a *app) printNamed(title string, items []namedID) error {
	if a.opts.json {
		return writeJSON(a.stdout, items)
	}
	t := newTable(a.stdout)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ID", "Name"})
	for _, it := range items {
		t.AppendRow(table.Row{it.ID, it.Name})
	}
	t.Render()
	return nil
}
