package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxSteps is roughly one year of daily occurrences.
const DefaultMaxSteps = 365

var (
	ErrInvalidRecurrenceRule = storage.ErrInvalidRecurrenceRule
	ErrInvalidRange          = errors.New("range end is before range start")
)

// Config of the expander, zero values take defaults.
type Config struct {
	// MaxSteps caps the number of generated steps of a series without a smaller count.
	MaxSteps int
}

// Result is the expansion of a set of events.
type Result struct {
	Occurrences []Occurrence
	// Truncated holds ids of events whose walk was stopped by MaxSteps.
	Truncated []string
}

// Expander materializes occurrences of event definitions.
type Expander struct {
	maxSteps int
}

func New(config Config) *Expander {
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultMaxSteps
	}
	return &Expander{maxSteps: config.MaxSteps}
}

// Expand turns event definitions into occurrences within [rangeStart, rangeEnd].
// Non-recurring events are emitted as is, the caller is expected to pre-filter them.
// Recurring events are walked from their own start; an instance is emitted when it starts
// at or after rangeStart, is not on an exception date and matches the weekday filter.
func (x *Expander) Expand(
	ctx context.Context,
	events []storage.Event,
	rangeStart time.Time,
	rangeEnd time.Time,
) (Result, error) {
	var result Result
	if rangeEnd.Before(rangeStart) {
		return result, ErrInvalidRange
	}
	for _, e := range events {
		if err := e.Recurrence.Validate(); err != nil {
			return result, fmt.Errorf("event %q: %w", e.ID, err)
		}
	}

	result.Occurrences = make([]Occurrence, 0, len(events))
	for _, e := range events {
		if !e.IsRecurring() {
			result.Occurrences = append(result.Occurrences, newOccurrence(e, e.StartTime, e.EndTime, false))
			continue
		}

		occurrences, truncated, err := x.walk(ctx, e, rangeStart, rangeEnd)
		if err != nil {
			return Result{}, err
		}
		if truncated {
			log.WithField("event", e.ID).WithField("maxSteps", x.maxSteps).
				Warn("recurrence expansion truncated")
			result.Truncated = append(result.Truncated, e.ID)
		}
		result.Occurrences = append(result.Occurrences, occurrences...)
	}
	return result, nil
}

func (x *Expander) walk(
	ctx context.Context,
	e storage.Event,
	rangeStart time.Time,
	rangeEnd time.Time,
) ([]Occurrence, bool, error) {
	rule := e.Recurrence
	limit, capped := x.maxSteps, true
	if rule.Count > 0 && rule.Count <= x.maxSteps {
		limit, capped = rule.Count, false
	}
	until := rangeEnd
	if rule.Until != nil {
		until = *rule.Until
	}
	inWalk := func(cursor time.Time) bool {
		return !cursor.After(rangeEnd) && !cursor.After(until)
	}

	exceptions := make(map[util.Date]struct{}, len(e.Exceptions))
	for _, d := range e.Exceptions {
		exceptions[d] = struct{}{}
	}
	var weekdays map[time.Weekday]struct{}
	if len(rule.ByWeekday) > 0 {
		weekdays = make(map[time.Weekday]struct{}, len(rule.ByWeekday))
		for _, wd := range rule.ByWeekday {
			weekdays[time.Weekday(wd)] = struct{}{}
		}
	}

	duration := e.Duration()
	occurrences := make([]Occurrence, 0)
	cursor := e.StartTime
	for step := 0; step < limit; step, cursor = step+1, advance(cursor, rule) {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !inWalk(cursor) {
			return occurrences, false, nil
		}
		if cursor.Before(rangeStart) {
			continue
		}
		if _, ok := exceptions[util.DateOf(cursor)]; ok {
			continue
		}
		if weekdays != nil {
			if _, ok := weekdays[cursor.Weekday()]; !ok {
				continue
			}
		}
		occurrences = append(occurrences, newOccurrence(e, cursor, cursor.Add(duration), true))
	}

	return occurrences, capped && inWalk(cursor), nil
}

// advance moves the cursor one interval forward. A month end clamped once stays clamped
// (Jan 31 -> Feb 29 -> Mar 29).
func advance(cursor time.Time, rule *storage.Recurrence) time.Time {
	switch rule.Frequency {
	case storage.FrequencyWeekly:
		return cursor.AddDate(0, 0, 7*rule.Interval)
	case storage.FrequencyMonthly:
		return util.AddMonthsClamped(cursor, rule.Interval)
	default:
		return cursor.AddDate(0, 0, rule.Interval)
	}
}
