package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lomoval/calendar/internal/storage"
)

type Storage struct {
	mu   sync.RWMutex
	data map[string]storage.Event
}

func New() *Storage {
	return &Storage{data: make(map[string]storage.Event)}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.data[e.ID] = e.Clone()
	return nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, e storage.Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	if !ok {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	e.ID = id
	s.data[e.ID] = e.Clone()
	return nil
}

func (s *Storage) RemoveEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	delete(s.data, id)
	return nil
}

func (s *Storage) GetEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return e.Clone(), nil
}

func (s *Storage) FindCandidateEvents(
	_ context.Context,
	ownerID string,
	start time.Time,
	end time.Time,
) ([]storage.Event, error) {
	return s.selectBy(func(e storage.Event) bool {
		return storage.IsCandidate(e, ownerID, start, end)
	}), nil
}

func (s *Storage) FindNotifiable(_ context.Context, from time.Time, to time.Time) ([]storage.Event, error) {
	return s.selectBy(func(e storage.Event) bool {
		if e.NotifyBefore <= 0 {
			return false
		}
		if e.IsRecurring() {
			return true
		}
		notifyAt := e.StartTime.Add(-time.Duration(e.NotifyBefore) * time.Minute)
		return !notifyAt.Before(from) && !notifyAt.After(to)
	}), nil
}

func (s *Storage) RemoveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, e := range s.data {
		if expired(e, cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}

// Events ordered by start time.
func (s *Storage) selectBy(match func(e storage.Event) bool) []storage.Event {
	events := make([]storage.Event, 0)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.data {
		if match(event) {
			events = append(events, event.Clone())
		}
	}
	sortByStart(events)
	return events
}

func expired(e storage.Event, cutoff time.Time) bool {
	if !e.IsRecurring() {
		return e.EndTime.Before(cutoff)
	}
	r := e.Recurrence
	if r.Until != nil {
		return r.Until.Before(cutoff)
	}
	// Without until a recurring event is kept; count based series are not walked here.
	return false
}

func sortByStart(events []storage.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
}

var _ storage.Storage = (*Storage)(nil)
