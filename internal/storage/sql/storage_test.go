//go:build sql
// +build sql

package sqlstorage_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lomoval/calendar/internal/storage"
	sqlstorage "github.com/lomoval/calendar/internal/storage/sql"
	"github.com/lomoval/calendar/internal/util"
	"github.com/stretchr/testify/require"
)

var (
	host     = "127.0.0.1"
	port     = 5532
	database = "testing"
	username = "postgres"
	password = "pas"
)

func TestMain(m *testing.M) {
	pgHost := os.Getenv("POSTGRES_HOST")
	pgPort := os.Getenv("POSTGRES_PORT")
	if pgHost != "" {
		host = pgHost
	}
	if pgPort != "" {
		port, _ = strconv.Atoi(pgPort)
	}

	cleanupDB()
	code := m.Run()
	os.Exit(code)
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	initDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("add event", func(t *testing.T) {
		s := createStorage(t)
		e := newEvent(initDate.Add(time.Hour))

		require.NoError(t, s.AddEvent(ctx, &e))
		require.NotEmpty(t, e.ID)

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		compareEvents(t, e, got)
	})

	t.Run("recurring event round trip", func(t *testing.T) {
		s := createStorage(t)
		until := initDate.AddDate(0, 3, 0)
		e := newEvent(initDate.Add(9 * time.Hour))
		e.Recurrence = &storage.Recurrence{
			Frequency: storage.FrequencyWeekly,
			Interval:  2,
			ByWeekday: []int{1, 3},
			Count:     10,
			Until:     &until,
		}
		e.Exceptions = []util.Date{{Year: 2024, Month: 1, Day: 15}}

		require.NoError(t, s.AddEvent(ctx, &e))
		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		compareEvents(t, e, got)
	})

	t.Run("update event", func(t *testing.T) {
		s := createStorage(t)
		e := newEvent(initDate.Add(time.Hour))
		require.NoError(t, s.AddEvent(ctx, &e))

		e.Title = "updated title"
		e.StartTime = e.EndTime.Add(21 * time.Minute)
		e.EndTime = e.EndTime.Add(33 * time.Minute)
		e.Description = "updated description"
		e.NotifyBefore = 100
		require.NoError(t, s.UpdateEvent(ctx, e.ID, e))

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		compareEvents(t, e, got)
	})

	t.Run("delete event", func(t *testing.T) {
		s := createStorage(t)
		e := newEvent(initDate.Add(time.Hour))
		require.NoError(t, s.AddEvent(ctx, &e))
		require.NoError(t, s.RemoveEvent(ctx, e.ID))

		_, err := s.GetEvent(ctx, e.ID)
		require.ErrorIs(t, err, storage.ErrNotFoundEvent)
	})

	t.Run("candidates", func(t *testing.T) {
		s := createStorage(t)
		e := newEvent(initDate)
		for i := 0; i < 60; i++ {
			require.NoError(t, s.AddEvent(ctx, &e))
			e.ID = ""
			e.StartTime = e.StartTime.AddDate(0, 0, 1)
			e.EndTime = e.EndTime.AddDate(0, 0, 1)
		}
		recurring := newEvent(initDate.AddDate(-2, 0, 0))
		recurring.Recurrence = &storage.Recurrence{Frequency: storage.FrequencyDaily, Interval: 1}
		require.NoError(t, s.AddEvent(ctx, &recurring))

		list, err := s.FindCandidateEvents(ctx, "testId", initDate.Add(30*time.Minute), initDate.Add(40*time.Minute))
		require.NoError(t, err)
		require.Equal(t, 2, len(list))

		list, err = s.FindCandidateEvents(ctx, "testId", initDate.AddDate(0, 1, 0), initDate.AddDate(0, 2, 0))
		require.NoError(t, err)
		require.Equal(t, 30, len(list))

		list, err = s.FindCandidateEvents(ctx, "another", initDate, initDate.AddDate(0, 2, 0))
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestStorageNegativeCases(t *testing.T) {
	ctx := context.Background()
	initDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("add event with same id", func(t *testing.T) {
		s := createStorage(t)
		e := newEvent(initDate)
		require.NoError(t, s.AddEvent(ctx, &e))
		require.ErrorIs(t, s.AddEvent(ctx, &e), storage.ErrDuplicateEventID)
	})

	t.Run("update not exist event", func(t *testing.T) {
		s := createStorage(t)
		require.ErrorIs(t, s.UpdateEvent(ctx, "___not_exists___", newEvent(initDate)), storage.ErrNotFoundEvent)
	})

	t.Run("delete not exist event", func(t *testing.T) {
		s := createStorage(t)
		require.ErrorIs(t, s.RemoveEvent(ctx, "___not_exists___"), storage.ErrNotFoundEvent)
	})

	t.Run("incorrect event time", func(t *testing.T) {
		s := createStorage(t)
		e := storage.Event{OwnerID: "testId", StartTime: initDate.Add(time.Hour), EndTime: initDate}
		require.ErrorIs(t, s.AddEvent(ctx, &e), storage.ErrIncorrectEventTime)
	})
}

func newEvent(start time.Time) storage.Event {
	return storage.Event{
		Title:       "test",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Description: "description",
		OwnerID:     "testId",
	}
}

func cleanupDB() error {
	db, err := sqlx.Connect(
		"postgres",
		fmt.Sprintf("sslmode=disable host=%s port=%d dbname=%s user=%s password=%s", host, port, database, username, password),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("TRUNCATE TABLE Events")
	return err
}

func compareEvents(t *testing.T, expected storage.Event, actual storage.Event) {
	t.Helper()
	require.True(t, expected.StartTime.Equal(actual.StartTime), "start time is not equals %q != %q", expected.StartTime, actual.StartTime)
	require.True(t, expected.EndTime.Equal(actual.EndTime), "end time is not equals %q != %q", expected.EndTime, actual.EndTime)
	expected.StartTime = actual.StartTime
	expected.EndTime = actual.EndTime
	if expected.Recurrence != nil && expected.Recurrence.Until != nil {
		require.NotNil(t, actual.Recurrence)
		require.True(t, expected.Recurrence.Until.Equal(*actual.Recurrence.Until))
		expected.Recurrence.Until = actual.Recurrence.Until
	}
	require.Equal(t, expected, actual)
}

func createStorage(t *testing.T) *sqlstorage.Storage {
	t.Helper()
	s := sqlstorage.New(sqlstorage.Config{
		Host:     host,
		Port:     port,
		Database: database,
		Username: username,
		Password: password,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() {
		s.Close(context.Background())
		require.NoError(t, cleanupDB())
	})
	return s
}
