package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lomoval/calendar/internal/conflict"
	"github.com/lomoval/calendar/internal/notify"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Expander recurrence.Config
	Conflict conflict.Config
	// RejectConflicts makes create and update fail when the event overlaps existing ones.
	RejectConflicts bool
}

type App struct {
	Storage         storage.Storage
	expander        *recurrence.Expander
	detector        *conflict.Detector
	notifier        notify.Notifier
	rejectConflicts bool
}

func New(config Config, stor storage.Storage, notifier notify.Notifier) *App {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	expander := recurrence.New(config.Expander)
	return &App{
		Storage:         stor,
		expander:        expander,
		detector:        conflict.New(config.Conflict, stor, expander),
		notifier:        notifier,
		rejectConflicts: config.RejectConflicts,
	}
}

func (a *App) Expander() *recurrence.Expander {
	return a.expander
}

func (a *App) CreateEvent(ctx context.Context, ownerID string, e storage.Event) (storage.Event, error) {
	e.OwnerID = ownerID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return storage.Event{}, err
	}
	if a.rejectConflicts {
		if err := a.detector.Validate(ctx, ownerID, e.StartTime, e.EndTime, ""); err != nil {
			return storage.Event{}, err
		}
	}
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	a.notify(ctx, notify.KindCreated, e)
	return e, nil
}

func (a *App) UpdateEvent(ctx context.Context, ownerID string, id string, e storage.Event) (storage.Event, error) {
	if _, err := a.GetEvent(ctx, ownerID, id); err != nil {
		return storage.Event{}, err
	}
	e.OwnerID = ownerID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return storage.Event{}, err
	}
	if a.rejectConflicts {
		if err := a.detector.Validate(ctx, ownerID, e.StartTime, e.EndTime, id); err != nil {
			return storage.Event{}, err
		}
	}
	if err := a.Storage.UpdateEvent(ctx, id, e); err != nil {
		return storage.Event{}, err
	}
	e.ID = id
	a.notify(ctx, notify.KindUpdated, e)
	return e, nil
}

func (a *App) RemoveEvent(ctx context.Context, ownerID string, id string) error {
	e, err := a.GetEvent(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := a.Storage.RemoveEvent(ctx, id); err != nil {
		return err
	}
	a.notify(ctx, notify.KindDeleted, e)
	return nil
}

// GetEvent returns the event only to its owner; other users get ErrNotFoundEvent.
func (a *App) GetEvent(ctx context.Context, ownerID string, id string) (storage.Event, error) {
	e, err := a.Storage.GetEvent(ctx, id)
	if err != nil {
		return storage.Event{}, err
	}
	if e.OwnerID != ownerID {
		return storage.Event{}, fmt.Errorf("event %q of another owner: %w", id, storage.ErrNotFoundEvent)
	}
	return e, nil
}

// ListOccurrences returns the owner's occurrences in [start, end] ordered by start.
func (a *App) ListOccurrences(ctx context.Context, ownerID string, start, end time.Time) (recurrence.Result, error) {
	if end.Before(start) {
		return recurrence.Result{}, recurrence.ErrInvalidRange
	}
	events, err := a.Storage.FindCandidateEvents(ctx, ownerID, start, end)
	if err != nil {
		return recurrence.Result{}, fmt.Errorf("failed to fetch events: %w", err)
	}
	res, err := a.expander.Expand(ctx, events, start, end)
	if err != nil {
		return recurrence.Result{}, err
	}
	recurrence.SortByStart(res.Occurrences)
	return res, nil
}

func (a *App) CheckConflicts(
	ctx context.Context,
	ownerID string,
	start time.Time,
	end time.Time,
	excludeID string,
) (conflict.Result, error) {
	return a.detector.FindConflicts(ctx, ownerID, start, end, excludeID)
}

// RemoveOccurrence deletes one instance of a recurring event by adding its date to the
// event exceptions. An id of a non-recurring event removes the whole event.
func (a *App) RemoveOccurrence(ctx context.Context, ownerID string, occurrenceID string) error {
	parentID, start, err := recurrence.ParseOccurrenceID(occurrenceID)
	if err != nil {
		return a.RemoveEvent(ctx, ownerID, occurrenceID)
	}

	e, err := a.GetEvent(ctx, ownerID, parentID)
	if errors.Is(err, storage.ErrNotFoundEvent) {
		return a.RemoveEvent(ctx, ownerID, occurrenceID)
	}
	if err != nil {
		return err
	}
	if !e.IsRecurring() {
		return a.RemoveEvent(ctx, ownerID, parentID)
	}

	day := util.DateOf(start.In(e.StartTime.Location()))
	if e.HasException(day) {
		return nil
	}
	e.Exceptions = append(e.Exceptions, day)
	if err := a.Storage.UpdateEvent(ctx, e.ID, e); err != nil {
		return err
	}
	a.notify(ctx, notify.KindUpdated, e)
	return nil
}

func (a *App) notify(ctx context.Context, kind notify.Kind, e storage.Event) {
	msg := notify.Message{
		Kind:    kind,
		OwnerID: e.OwnerID,
		EventID: e.ID,
		Title:   e.Title,
		Time:    time.Now(),
	}
	if kind != notify.KindDeleted {
		msg.Event = &e
	}
	if err := a.notifier.Notify(ctx, msg); err != nil {
		log.WithField("event", e.ID).Errorf("failed to notify about %s event: %v", kind, err)
	}
}
