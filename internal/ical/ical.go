package ical

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

const (
	productID = "-//lomoval//calendar//EN"

	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"

	propertyRecurrenceID = ics.ComponentProperty("RECURRENCE-ID")
	propertyColor        = ics.ComponentProperty("COLOR")
)

var (
	ErrUnsupportedRule = errors.New("unsupported recurrence rule")
	ErrIncorrectEvent  = errors.New("incorrect calendar event")
)

// Export writes occurrences as a VCALENDAR. Instances of a recurring event share the UID of
// their parent and are told apart by RECURRENCE-ID.
func Export(w io.Writer, occurrences []recurrence.Occurrence, stamp time.Time) error {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)

	for _, o := range occurrences {
		ev := cal.AddEvent(o.EventID())
		ev.SetDtStampTime(stamp)
		ev.SetSummary(o.Title)
		if o.Description != "" {
			ev.SetDescription(o.Description)
		}
		if o.Location != "" {
			ev.SetLocation(o.Location)
		}
		if o.Color != "" {
			ev.SetProperty(propertyColor, o.Color)
		}
		if o.AllDay {
			ev.SetProperty(ics.ComponentPropertyDtStart, o.StartTime.Format(dateLayout), ics.WithValue("DATE"))
			ev.SetProperty(ics.ComponentPropertyDtEnd, o.EndTime.Format(dateLayout), ics.WithValue("DATE"))
		} else {
			ev.SetStartAt(o.StartTime)
			ev.SetEndAt(o.EndTime)
		}
		if o.IsRecurring {
			ev.SetProperty(propertyRecurrenceID, o.StartTime.UTC().Format(utcLayout))
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

// Import reads VEVENTs into events of ownerID, keeping UIDs as event ids. A VEVENT with
// RECURRENCE-ID is an override: its date becomes an exception of the series with the same UID
// and the override itself is imported as a single event without id.
func Import(r io.Reader, ownerID string) ([]storage.Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	events := make([]storage.Event, 0, len(cal.Events()))
	series := make(map[string]int)
	overrides := make(map[string][]time.Time)
	for _, ve := range cal.Events() {
		uid := propertyValue(ve, ics.ComponentPropertyUniqueId)
		e, err := parseEvent(ve, ownerID)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", uid, err)
		}
		if p := ve.GetProperty(propertyRecurrenceID); p != nil {
			t, err := parseTime(p)
			if err != nil {
				return nil, fmt.Errorf("event %q recurrence id: %w", uid, err)
			}
			e.Recurrence = nil
			overrides[uid] = append(overrides[uid], t)
		} else {
			e.ID = uid
			if e.IsRecurring() && uid != "" {
				series[uid] = len(events)
			}
		}
		events = append(events, e)
	}

	for uid, dates := range overrides {
		i, ok := series[uid]
		if !ok {
			continue
		}
		loc := events[i].StartTime.Location()
		for _, t := range dates {
			events[i].Exceptions = append(events[i].Exceptions, util.DateOf(t.In(loc)))
		}
	}
	for i := range events {
		events[i].Normalize()
	}
	log.WithField("owner", ownerID).Debugf("imported %d events", len(events))
	return events, nil
}

func parseEvent(ve *ics.VEvent, ownerID string) (storage.Event, error) {
	e := storage.Event{
		Title:       propertyValue(ve, ics.ComponentPropertySummary),
		Description: propertyValue(ve, ics.ComponentPropertyDescription),
		Location:    propertyValue(ve, ics.ComponentPropertyLocation),
		Color:       propertyValue(ve, propertyColor),
		OwnerID:     ownerID,
	}

	start := ve.GetProperty(ics.ComponentPropertyDtStart)
	if start == nil {
		return e, fmt.Errorf("no start: %w", ErrIncorrectEvent)
	}
	var err error
	e.AllDay = isDate(start)
	if e.StartTime, err = parseTime(start); err != nil {
		return e, err
	}
	if end := ve.GetProperty(ics.ComponentPropertyDtEnd); end != nil {
		if e.EndTime, err = parseTime(end); err != nil {
			return e, err
		}
	} else if e.AllDay {
		e.EndTime = e.StartTime.AddDate(0, 0, 1)
	} else {
		return e, fmt.Errorf("no end: %w", ErrIncorrectEvent)
	}

	if p := ve.GetProperty(ics.ComponentPropertyRrule); p != nil {
		if e.Recurrence, err = parseRule(p.Value); err != nil {
			return e, err
		}
	}

	loc := e.StartTime.Location()
	for _, p := range ve.GetProperties(ics.ComponentPropertyExdate) {
		for _, v := range strings.Split(p.Value, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			t, err := parseValue(v, param(p, "TZID"))
			if err != nil {
				return e, fmt.Errorf("exception date: %w", err)
			}
			e.Exceptions = append(e.Exceptions, util.DateOf(t.In(loc)))
		}
	}
	return e, nil
}

// parseRule maps an RRULE onto the supported subset: DAILY, WEEKLY and MONTHLY with
// INTERVAL, COUNT, UNTIL and plain BYDAY values.
func parseRule(value string) (*storage.Recurrence, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %v: %w", value, err, ErrUnsupportedRule)
	}

	rule := &storage.Recurrence{Interval: opt.Interval, Count: opt.Count}
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = storage.FrequencyDaily
	case rrule.WEEKLY:
		rule.Frequency = storage.FrequencyWeekly
	case rrule.MONTHLY:
		rule.Frequency = storage.FrequencyMonthly
	default:
		return nil, fmt.Errorf("rule %q: frequency %v: %w", value, opt.Freq, ErrUnsupportedRule)
	}
	if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Bysetpos) > 0 ||
		len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 {
		return nil, fmt.Errorf("rule %q: %w", value, ErrUnsupportedRule)
	}
	for i := range opt.Byweekday {
		wd := opt.Byweekday[i]
		if wd.N() != 0 {
			return nil, fmt.Errorf("rule %q: positional weekday: %w", value, ErrUnsupportedRule)
		}
		// rrule counts weekdays from Monday.
		rule.ByWeekday = append(rule.ByWeekday, (wd.Day()+1)%7)
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.Until = &until
	}
	return rule, nil
}

func propertyValue(ve *ics.VEvent, name ics.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func param(p *ics.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func isDate(p *ics.IANAProperty) bool {
	return strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(p.Value, "T")
}

func parseTime(p *ics.IANAProperty) (time.Time, error) {
	return parseValue(strings.TrimSpace(p.Value), param(p, "TZID"))
}

// parseValue reads DATE, UTC DATE-TIME and local DATE-TIME values. Local values use the TZID
// location when given, dates are UTC midnights.
func parseValue(v string, tzid string) (time.Time, error) {
	loc := time.UTC
	if tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return time.Time{}, fmt.Errorf("timezone %q: %w", tzid, ErrIncorrectEvent)
		}
		loc = l
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err = time.Parse(utcLayout, v)
	case strings.Contains(v, "T"):
		t, err = time.ParseInLocation(dateTimeLayout, v, loc)
	default:
		t, err = time.ParseInLocation(dateLayout, v, time.UTC)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", v, ErrIncorrectEvent)
	}
	return t, nil
}
