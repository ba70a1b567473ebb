package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"student-rooms/internal/matching"
	"student-rooms/internal/models"
)

func testMatchCmd(a *app) *cobra.Command {
	var (
		name     string
		start    string
		end      string
		fromYear int
		toYear   int
	)

	cmd := &cobra.Command{
		Use:   "test-match",
		Short: "Check whether a tenancy would count as Semester 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec := a.cfg.MatchingSpec(a.now())
			if fromYear != 0 {
				spec.StartYear = fromYear
				spec.EndYear = fromYear + 1
			}
			if toYear != 0 {
				spec.EndYear = toYear
			}

			startDate, err := optionalDate(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, err := optionalDate(end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			v := matching.Evaluate(name, startDate, endDate, spec)
			if a.opts.json {
				return writeJSON(a.stdout, v)
			}
			verdict := "NO MATCH"
			if v.Match {
				verdict = "MATCH"
			}
			fmt.Fprintf(a.stdout, "%s (%s)\n", verdict, v.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Semester 1", "Tenancy option name")
	cmd.Flags().StringVar(&start, "start", "", "Start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "End date YYYY-MM-DD")
	cmd.Flags().IntVar(&fromYear, "from-year", 0, "Academic year start (default from config)")
	cmd.Flags().IntVar(&toYear, "to-year", 0, "Academic year end")
	return cmd
}

func optionalDate(s string) (*models.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
