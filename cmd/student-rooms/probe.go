package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"student-rooms/internal/models"
	"student-rooms/internal/notifier"
)

type probeFilter struct {
	residence string
	room      string
	tenancy   string
}

func containsFold(value, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

func (f probeFilter) candidates(options []models.RoomOption) []models.RoomOption {
	var out []models.RoomOption
	for _, o := range options {
		if containsFold(o.PropertyName, f.residence) &&
			containsFold(o.RoomType, f.room) &&
			containsFold(o.OptionName, f.tenancy) {
			out = append(out, o)
		}
	}
	return out
}

func probeBookingCmd(a *app) *cobra.Command {
	var (
		filter     probeFilter
		index      int
		allOptions bool
		notify     bool
	)

	cmd := &cobra.Command{
		Use:   "probe-booking",
		Short: "Walk the booking flow of one matched option and print deep links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if index < 0 {
				return fmt.Errorf("--index must not be negative")
			}
			res, err := a.scan(cmd.Context(), allOptions, false)
			if err != nil {
				return err
			}
			renderProviderErrors(a.stderr, res.Errors)
			if len(res.Matches) == 0 {
				return errors.New("no matches found")
			}

			candidates := filter.candidates(res.Matches)
			if len(candidates) == 0 {
				return errors.New("no candidates after filters")
			}
			if index >= len(candidates) {
				return fmt.Errorf("index %d out of range (candidates: %d)", index, len(candidates))
			}
			selected := candidates[index]

			prober, err := a.registry.Prober(selected.Provider)
			if err != nil {
				return err
			}
			bc, err := prober.ProbeBooking(cmd.Context(), selected)
			if err != nil {
				return fmt.Errorf("booking probe: %w", err)
			}

			if notify {
				n, err := a.notifier()
				if err != nil {
					return err
				}
				msg := notifier.BuildAlertMessage(candidates[index:], notifier.AlertOptions{AllOptions: allOptions, Booking: &bc})
				if err := n.Send(cmd.Context(), msg); err != nil && !errors.Is(err, notifier.ErrDisabled) {
					return err
				}
			}

			if a.opts.json {
				return writeJSON(a.stdout, bc)
			}
			renderBooking(a.stdout, bc)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.residence, "residence", "", "Only options whose property name contains this")
	cmd.Flags().StringVar(&filter.room, "room", "", "Only options whose room type contains this")
	cmd.Flags().StringVar(&filter.tenancy, "tenancy", "", "Only options whose tenancy name contains this")
	cmd.Flags().IntVar(&index, "index", 0, "Candidate to probe after filtering")
	cmd.Flags().BoolVar(&allOptions, "all-options", false, "Probe any option, not only Semester 1")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the probed option through the configured notifier")
	return cmd
}
