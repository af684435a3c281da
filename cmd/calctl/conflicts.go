package main

import (
	"github.com/spf13/cobra"
)

func newConflictsCmd(opts *options) *cobra.Command {
	var from, to, exclude string
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Check a time interval against the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTime("start", from)
			if err != nil {
				return err
			}
			end, err := parseTime("end", to)
			if err != nil {
				return err
			}
			calendar, err := loadCalendar(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res, err := calendar.CheckConflicts(cmd.Context(), owner, start, end, exclude)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.json {
				return outputJSON(w, res)
			}
			if !res.HasConflict {
				successColor.Fprintln(w, "no conflicts")
				return nil
			}
			errorColor.Fprintf(w, "%d conflict(s)\n", len(res.Conflicts))
			for _, o := range res.Conflicts {
				printOccurrence(w, o)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "start", "", "Interval start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "end", "", "Interval end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Event or occurrence id to ignore")
	return cmd
}
