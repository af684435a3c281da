package storage

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/lomoval/calendar/internal/util"
)

const DefaultColor = "#1a73e8"

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// Recurrence describes how an event repeats. Count equal to zero means no count limit.
type Recurrence struct {
	Frequency Frequency  `json:"freq"`
	Interval  int        `json:"interval"`
	ByWeekday []int      `json:"byWeekday,omitempty"`
	Count     int        `json:"count,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
}

type Event struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Color        string      `json:"color,omitempty"`
	Location     string      `json:"location,omitempty"`
	StartTime    time.Time   `json:"start"`
	EndTime      time.Time   `json:"end"`
	AllDay       bool        `json:"allDay"`
	Recurrence   *Recurrence `json:"recurrence,omitempty"`
	Exceptions   []util.Date `json:"exceptions,omitempty"`
	OwnerID      string      `json:"ownerId"`
	NotifyBefore int32       `json:"notifyBefore,omitempty"`
}

func (e Event) IsRecurring() bool {
	return e.Recurrence != nil && e.Recurrence.Frequency != ""
}

func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

func (e Event) HasException(d util.Date) bool {
	for _, ex := range e.Exceptions {
		if ex == d {
			return true
		}
	}
	return false
}

// Validate checks a recurrence rule. A nil rule or an empty frequency is a valid non-recurring event.
func (r *Recurrence) Validate() error {
	if r == nil || r.Frequency == "" {
		return nil
	}
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("unsupported frequency %q: %w", r.Frequency, ErrInvalidRecurrenceRule)
	}
	if r.Interval < 1 {
		return fmt.Errorf("interval must be positive, got %d: %w", r.Interval, ErrInvalidRecurrenceRule)
	}
	if r.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d: %w", r.Count, ErrInvalidRecurrenceRule)
	}
	for _, wd := range r.ByWeekday {
		if wd < int(time.Sunday) || wd > int(time.Saturday) {
			return fmt.Errorf("weekday %d is out of range 0-6: %w", wd, ErrInvalidRecurrenceRule)
		}
	}
	return nil
}

// Normalize applies the defaults a stored event is expected to have.
func (e *Event) Normalize() {
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.AllDay {
		e.StartTime = util.TruncateToDay(e.StartTime)
		e.EndTime = util.CeilToDay(e.EndTime)
		if !e.EndTime.After(e.StartTime) {
			e.EndTime = e.StartTime.AddDate(0, 0, 1)
		}
	}
	if e.Recurrence != nil {
		if e.Recurrence.Frequency == "" {
			e.Recurrence = nil
		} else if e.Recurrence.Interval == 0 {
			e.Recurrence.Interval = 1
		}
	}
	if len(e.Exceptions) > 1 {
		sort.Slice(e.Exceptions, func(i, j int) bool { return e.Exceptions[i].Before(e.Exceptions[j]) })
		uniq := e.Exceptions[:1]
		for _, d := range e.Exceptions[1:] {
			if d != uniq[len(uniq)-1] {
				uniq = append(uniq, d)
			}
		}
		e.Exceptions = uniq
	}
}

func (e Event) Validate() error {
	if e.OwnerID == "" {
		return ErrOwnerRequired
	}
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("event end time should be after of start time: %w", ErrIncorrectEventTime)
	}
	if e.Color != "" && !colorPattern.MatchString(e.Color) {
		return fmt.Errorf("color %q: %w", e.Color, ErrInvalidColor)
	}
	return e.Recurrence.Validate()
}

// IsCandidate is the loose store-level filter used before expansion: every recurring event of
// the owner, and non-recurring events touching [start, end].
func IsCandidate(e Event, ownerID string, start time.Time, end time.Time) bool {
	if e.OwnerID != ownerID {
		return false
	}
	if e.IsRecurring() {
		return true
	}
	return !e.StartTime.After(end) && !e.EndTime.Before(start)
}

// Clone returns a copy of e that shares no slices or pointers with it.
func (e Event) Clone() Event {
	if e.Recurrence != nil {
		r := *e.Recurrence
		if r.ByWeekday != nil {
			r.ByWeekday = append([]int(nil), r.ByWeekday...)
		}
		if r.Until != nil {
			until := *r.Until
			r.Until = &until
		}
		e.Recurrence = &r
	}
	if e.Exceptions != nil {
		e.Exceptions = append([]util.Date(nil), e.Exceptions...)
	}
	return e
}
