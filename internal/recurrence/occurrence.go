package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lomoval/calendar/internal/storage"
)

var ErrIncorrectOccurrenceID = errors.New("incorrect occurrence id")

// Occurrence is one concrete instance of an event after expansion.
type Occurrence struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color,omitempty"`
	Location      string    `json:"location,omitempty"`
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	AllDay        bool      `json:"allDay"`
	IsRecurring   bool      `json:"isRecurring"`
	ParentEventID string    `json:"parentEventId,omitempty"`
	OwnerID       string    `json:"ownerId"`
}

// EventID returns the id of the event definition the occurrence was produced from.
func (o Occurrence) EventID() string {
	if o.IsRecurring {
		return o.ParentEventID
	}
	return o.ID
}

// OccurrenceID builds the id of a recurring instance. It can be split back with ParseOccurrenceID.
func OccurrenceID(eventID string, start time.Time) string {
	return eventID + "_" + strconv.FormatInt(start.UnixMilli(), 10)
}

// ParseOccurrenceID returns the parent event id and the start of a recurring instance.
func ParseOccurrenceID(id string) (string, time.Time, error) {
	pos := strings.LastIndex(id, "_")
	if pos <= 0 || pos == len(id)-1 {
		return "", time.Time{}, fmt.Errorf("%q: %w", id, ErrIncorrectOccurrenceID)
	}
	ms, err := strconv.ParseInt(id[pos+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%q: %w", id, ErrIncorrectOccurrenceID)
	}
	return id[:pos], time.UnixMilli(ms).UTC(), nil
}

// SortByStart orders occurrences by start time keeping the input order for equal starts.
func SortByStart(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].StartTime.Before(occurrences[j].StartTime)
	})
}

func newOccurrence(e storage.Event, start time.Time, end time.Time, recurring bool) Occurrence {
	o := Occurrence{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Location:    e.Location,
		StartTime:   start,
		EndTime:     end,
		AllDay:      e.AllDay,
		OwnerID:     e.OwnerID,
	}
	if recurring {
		o.ID = OccurrenceID(e.ID, start)
		o.IsRecurring = true
		o.ParentEventID = e.ID
	}
	return o
}
