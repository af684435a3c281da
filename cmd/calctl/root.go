package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/lomoval/calendar/internal/app"
	"github.com/lomoval/calendar/internal/ical"
	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/recurrence"
	memorystorage "github.com/lomoval/calendar/internal/storage/memory"
	"github.com/lomoval/calendar/internal/util"
	"github.com/spf13/cobra"
)

const owner = "calctl"

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

type options struct {
	icsFile  string
	maxSteps int
	logLevel string
	json     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "calctl",
		Short: "Expand recurring events and check conflicts in an iCalendar file",
		Long: `calctl loads an iCalendar file into an in-memory calendar and runs the same
expansion and conflict detection the calendar service does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.PrepareLogger(logger.Config{Level: opts.logLevel})
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&opts.icsFile, "ics", "", "iCalendar file to load")
	root.PersistentFlags().IntVar(&opts.maxSteps, "max-steps", recurrence.DefaultMaxSteps, "Recurrence walk limit per event")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output JSON")

	root.AddCommand(newExpandCmd(opts), newConflictsCmd(opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

// loadCalendar imports the iCalendar file into a fresh in-memory calendar.
func loadCalendar(ctx context.Context, opts *options) (*app.App, error) {
	if opts.icsFile == "" {
		return nil, fmt.Errorf("--ics is required")
	}
	f, err := os.Open(opts.icsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", opts.icsFile, err)
	}
	defer f.Close()

	events, err := ical.Import(f, owner)
	if err != nil {
		return nil, err
	}
	calendar := app.New(app.Config{Expander: recurrence.Config{MaxSteps: opts.maxSteps}}, memorystorage.New(), nil)
	for _, e := range events {
		if _, err := calendar.CreateEvent(ctx, owner, e); err != nil {
			return nil, fmt.Errorf("failed to load event %q: %w", e.Title, err)
		}
	}
	return calendar, nil
}

// parseTime accepts RFC 3339 times and plain dates, which mean UTC midnight.
func parseTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(util.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: incorrect time %q", name, v)
	}
	return t, nil
}

func printOccurrence(w io.Writer, o recurrence.Occurrence) {
	when := o.StartTime.Format("2006-01-02 15:04") + " - " + o.EndTime.Format("15:04")
	if o.AllDay {
		when = o.StartTime.Format(util.DateLayout) + " all day"
	}
	fmt.Fprintf(w, "  %s  %s  %s\n", when, o.Title, dimColor.Sprint(o.ID))
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
