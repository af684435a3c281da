package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOccurrenceID(t *testing.T) {
	start := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	id := OccurrenceID("0b7e_event", start)
	require.Equal(t, "0b7e_event_1704704400000", id)

	parent, parsedStart, err := ParseOccurrenceID(id)
	require.NoError(t, err)
	require.Equal(t, "0b7e_event", parent)
	require.True(t, start.Equal(parsedStart))

	for _, broken := range []string{"", "plain", "_123", "event_", "event_abc"} {
		_, _, err := ParseOccurrenceID(broken)
		require.ErrorIs(t, err, ErrIncorrectOccurrenceID, broken)
	}
}

func TestSortByStart(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	occurrences := []Occurrence{
		{ID: "c", StartTime: base.Add(2 * time.Hour)},
		{ID: "a", StartTime: base},
		{ID: "b1", StartTime: base.Add(time.Hour)},
		{ID: "b2", StartTime: base.Add(time.Hour)},
	}
	SortByStart(occurrences)

	ids := make([]string, 0, len(occurrences))
	for _, o := range occurrences {
		ids = append(ids, o.ID)
	}
	require.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
}
