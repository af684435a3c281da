package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateEventID      = errors.New("event with same ID exists")
	ErrNotFoundEvent         = errors.New("event not found")
	ErrIncorrectEventTime    = errors.New("incorrect event time")
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
	ErrInvalidColor          = errors.New("invalid color")
	ErrOwnerRequired         = errors.New("event owner is required")
	ErrStoreUnavailable      = errors.New("event store unavailable")
)

// CandidateFinder is the part of the store the conflict detector and the listing depend on.
type CandidateFinder interface {
	FindCandidateEvents(ctx context.Context, ownerID string, start time.Time, end time.Time) ([]Event, error)
}

type Storage interface {
	CandidateFinder
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	AddEvent(ctx context.Context, e *Event) error
	UpdateEvent(ctx context.Context, id string, e Event) error
	RemoveEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (Event, error)
	// FindNotifiable returns events with reminders that may fire in [from, to].
	FindNotifiable(ctx context.Context, from time.Time, to time.Time) ([]Event, error)
	// RemoveBefore deletes events that have no occurrences after cutoff.
	RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
