package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"student-rooms/internal/ledger"
	"student-rooms/internal/logger"
	"student-rooms/internal/models"
	"student-rooms/internal/notifier"
)

func scanCmd(a *app) *cobra.Command {
	var allOptions, allYears, notify bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print the matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.scan(cmd.Context(), allOptions, allYears)
			if err != nil {
				return err
			}

			if a.opts.json {
				if err := writeJSON(a.stdout, res); err != nil {
					return err
				}
			} else {
				if len(res.Matches) == 0 {
					fmt.Fprintln(a.stdout, "No matches found.")
				} else {
					renderOptions(a.stdout, res.Matches)
				}
				fmt.Fprintf(a.stdout, "Total matches: %d\n", res.MatchCount)
				renderProviderErrors(a.stderr, res.Errors)
			}

			if notify && len(res.Matches) > 0 {
				n, err := a.notifier()
				if err != nil {
					return err
				}
				msg := scanAlert(res.Matches, allOptions, a.knownKeys(cmd.Context(), res.Matches))
				if err := n.Send(cmd.Context(), msg); err != nil && !errors.Is(err, notifier.ErrDisabled) {
					return err
				}
			}

			if len(res.Scanned) > 0 && len(res.Errors) == len(res.Scanned) {
				return errors.New("every provider failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allOptions, "all-options", false, "Skip semester matching and list every option")
	cmd.Flags().BoolVar(&allYears, "all-years", false, "Do not restrict options to the target academic year")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the matches through the configured notifier")
	return cmd
}

// scanAlert renders the --notify message. When known holds every match the
// message goes out as a reminder.
func scanAlert(matches []models.RoomOption, allOptions bool, known map[string]bool) string {
	reminder := known != nil
	for _, m := range matches {
		if !known[m.DedupKey()] {
			reminder = false
			break
		}
	}
	return notifier.BuildAlertMessage(matches, notifier.AlertOptions{AllOptions: allOptions, Reminder: reminder})
}

// knownKeys looks the matches up in the watch ledger without changing it.
// It returns nil when the ledger cannot be read.
func (a *app) knownKeys(ctx context.Context, matches []models.RoomOption) map[string]bool {
	store, err := ledger.Open(a.cfg.LedgerConfig(), a.log)
	if err != nil {
		a.log.Warn("Ledger unavailable", logger.Err(err))
		return nil
	}
	defer store.Close()
	if _, err := store.Load(ctx); err != nil {
		a.log.Warn("Ledger unavailable", logger.Err(err))
		return nil
	}
	known := make(map[string]bool, len(matches))
	for _, m := range matches {
		if store.HasSeen(m.DedupKey()) {
			known[m.DedupKey()] = true
		}
	}
	return known
}
