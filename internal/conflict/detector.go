package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
)

// DefaultStoreTimeout bounds the candidate query when Config.StoreTimeout is not set.
const DefaultStoreTimeout = 5 * time.Second

var (
	ErrInvalidInterval = errors.New("candidate end must be after candidate start")
	ErrConflict        = errors.New("event conflicts with existing events")
)

// Config of the detector, zero values take defaults.
type Config struct {
	StoreTimeout time.Duration
}

// Result lists the occurrences overlapping a candidate interval.
type Result struct {
	HasConflict bool                    `json:"hasConflict"`
	Conflicts   []recurrence.Occurrence `json:"conflicts"`
}

// Detector finds occurrences of stored events overlapping a candidate interval.
type Detector struct {
	finder       storage.CandidateFinder
	expander     *recurrence.Expander
	storeTimeout time.Duration
}

func New(config Config, finder storage.CandidateFinder, expander *recurrence.Expander) *Detector {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	return &Detector{finder: finder, expander: expander, storeTimeout: config.StoreTimeout}
}

// Overlaps reports whether [start1, end1) and [start2, end2) share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// FindConflicts returns occurrences of the owner's events overlapping [start, end).
// Occurrences of excludeID (an event id or a single occurrence id) are ignored.
func (d *Detector) FindConflicts(
	ctx context.Context,
	ownerID string,
	start time.Time,
	end time.Time,
	excludeID string,
) (Result, error) {
	if !end.After(start) {
		return Result{}, ErrInvalidInterval
	}

	events, err := d.fetch(ctx, ownerID, start, end)
	if err != nil {
		return Result{}, err
	}
	expanded, err := d.expander.Expand(ctx, events, start.Add(-lookBack(events)), end)
	if err != nil {
		return Result{}, fmt.Errorf("failed to expand candidate events: %w", err)
	}

	conflicts := make([]recurrence.Occurrence, 0)
	for _, o := range expanded.Occurrences {
		if excludeID != "" && (o.ID == excludeID || o.ParentEventID == excludeID) {
			continue
		}
		if Overlaps(start, end, o.StartTime, o.EndTime) {
			conflicts = append(conflicts, o)
		}
	}
	recurrence.SortByStart(conflicts)

	log.WithField("owner", ownerID).WithField("candidates", len(events)).
		WithField("conflicts", len(conflicts)).Debug("conflict check done")
	return Result{HasConflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}

// Validate fails with ErrConflict when [start, end) overlaps any occurrence except excludeID.
func (d *Detector) Validate(ctx context.Context, ownerID string, start, end time.Time, excludeID string) error {
	res, err := d.FindConflicts(ctx, ownerID, start, end, excludeID)
	if err != nil {
		return err
	}
	if res.HasConflict {
		return fmt.Errorf("overlaps %d existing event(s): %w", len(res.Conflicts), ErrConflict)
	}
	return nil
}

// lookBack is the longest recurring duration: an instance starting that long before the
// candidate may still overlap it, and the expander only emits instances starting inside the range.
func lookBack(events []storage.Event) time.Duration {
	var longest time.Duration
	for _, e := range events {
		if e.IsRecurring() && e.Duration() > longest {
			longest = e.Duration()
		}
	}
	return longest
}

func (d *Detector) fetch(ctx context.Context, ownerID string, start, end time.Time) ([]storage.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	events, err := d.finder.FindCandidateEvents(ctx, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate events: %w", err)
	}
	return events, nil
}
