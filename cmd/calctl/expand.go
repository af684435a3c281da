package main

import (
	"github.com/spf13/cobra"
)

func newExpandCmd(opts *options) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "List occurrences in a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTime("from", from)
			if err != nil {
				return err
			}
			end, err := parseTime("to", to)
			if err != nil {
				return err
			}
			calendar, err := loadCalendar(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res, err := calendar.ListOccurrences(cmd.Context(), owner, start, end)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.json {
				return outputJSON(w, res)
			}
			headerColor.Fprintf(w, "%d occurrence(s)\n", len(res.Occurrences))
			for _, o := range res.Occurrences {
				printOccurrence(w, o)
			}
			for _, id := range res.Truncated {
				warningColor.Fprintf(w, "event %s was truncated at %d steps\n", id, opts.maxSteps)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC 3339 or YYYY-MM-DD)")
	return cmd
}
