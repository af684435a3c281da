package sqlstorage

import (
	"context"
	"testing"
	"time"

	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	"github.com/stretchr/testify/require"
)

// fromDB mimics the driver: instants come back in UTC.
func fromDB(row eventRow) eventRow {
	row.StartTime = row.StartTime.UTC()
	row.EndTime = row.EndTime.UTC()
	if row.Until.Valid {
		row.Until.Time = row.Until.Time.UTC()
	}
	return row
}

func TestRowRoundTrip(t *testing.T) {
	est := time.FixedZone("", -5*60*60)
	until := time.Date(2024, 3, 1, 0, 0, 0, 0, est)
	e := storage.Event{
		ID:        "late",
		Title:     "late call",
		Color:     storage.DefaultColor,
		StartTime: time.Date(2024, 1, 1, 23, 30, 0, 0, est),
		EndTime:   time.Date(2024, 1, 2, 0, 15, 0, 0, est),
		Recurrence: &storage.Recurrence{
			Frequency: storage.FrequencyWeekly,
			Interval:  1,
			ByWeekday: []int{1},
			Until:     &until,
		},
		Exceptions:   []util.Date{{Year: 2024, Month: time.January, Day: 8}},
		OwnerID:      "u1",
		NotifyBefore: 10,
	}

	got, err := fromDB(toRow(e)).toEvent()
	require.NoError(t, err)

	require.True(t, e.StartTime.Equal(got.StartTime))
	require.True(t, e.EndTime.Equal(got.EndTime))
	_, offset := got.StartTime.Zone()
	require.Equal(t, -5*60*60, offset)
	require.Equal(t, util.DateOf(e.StartTime), util.DateOf(got.StartTime))
	require.Equal(t, e.Exceptions, got.Exceptions)
	require.Equal(t, []int{1}, got.Recurrence.ByWeekday)
	require.Equal(t, storage.FrequencyWeekly, got.Recurrence.Frequency)
	require.Equal(t, 1, got.Recurrence.Interval)
	require.NotNil(t, got.Recurrence.Until)
	require.True(t, until.Equal(*got.Recurrence.Until))
	require.Equal(t, e.NotifyBefore, got.NotifyBefore)

	x := recurrence.New(recurrence.Config{})
	from, to := time.Date(2024, 1, 1, 0, 0, 0, 0, est), time.Date(2024, 1, 20, 0, 0, 0, 0, est)
	direct, err := x.Expand(context.Background(), []storage.Event{e}, from, to)
	require.NoError(t, err)
	stored, err := x.Expand(context.Background(), []storage.Event{got}, from, to)
	require.NoError(t, err)

	require.Len(t, stored.Occurrences, 2)
	require.Len(t, stored.Occurrences, len(direct.Occurrences))
	for i, o := range stored.Occurrences {
		require.True(t, direct.Occurrences[i].StartTime.Equal(o.StartTime))
		require.NotEqual(t, util.Date{Year: 2024, Month: time.January, Day: 8}, util.DateOf(o.StartTime))
	}
}

func TestZoneOf(t *testing.T) {
	start := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, time.UTC, zoneOf("UTC", 0, start))
	require.Equal(t, time.UTC, zoneOf("", 0, start))

	loc := zoneOf("", 3*60*60, start)
	_, offset := start.In(loc).Zone()
	require.Equal(t, 3*60*60, offset)

	loc = zoneOf("Nowhere/Unknown", -2*60*60, start)
	_, offset = start.In(loc).Zone()
	require.Equal(t, -2*60*60, offset)
}
