package internalgrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lomoval/calendar/internal/app"
	"github.com/lomoval/calendar/internal/storage"
	memorystorage "github.com/lomoval/calendar/internal/storage/memory"
	"github.com/lomoval/calendar/internal/util"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T, config app.Config) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(Config{}, app.New(config, memorystorage.New(), nil))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
	})

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func dailyReview() storage.Event {
	start := time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)
	return storage.Event{
		Title:      "review",
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		Recurrence: &storage.Recurrence{Frequency: storage.FrequencyDaily, Interval: 2, Count: 5},
	}
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	conn := startServer(t, app.Config{})
	client := NewClient(conn, "u1")

	added, err := client.AddEvent(ctx, dailyReview())
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	require.Equal(t, "u1", added.OwnerID)
	require.Equal(t, 2, added.Recurrence.Interval)
	require.Equal(t, 5, added.Recurrence.Count)

	list, err := client.ListOccurrences(ctx,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list.Events, 5)
	require.Empty(t, list.Truncated)
	require.Equal(t, time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC), list.Events[4].StartTime.UTC())

	require.NoError(t, client.RemoveOccurrence(ctx, list.Events[2].ID))

	res, err := client.CheckConflicts(ctx,
		time.Date(2024, 3, 5, 17, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	require.False(t, res.HasConflict)

	res, err = client.CheckConflicts(ctx,
		time.Date(2024, 3, 7, 17, 15, 0, 0, time.UTC), time.Date(2024, 3, 7, 18, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)
	require.True(t, res.HasConflict)
	require.Len(t, res.Conflicts, 1)

	res, err = client.CheckConflicts(ctx,
		time.Date(2024, 3, 7, 17, 15, 0, 0, time.UTC), time.Date(2024, 3, 7, 18, 0, 0, 0, time.UTC), added.ID)
	require.NoError(t, err)
	require.False(t, res.HasConflict)

	moved := dailyReview()
	moved.Title = "late review"
	updated, err := client.UpdateEvent(ctx, added.ID, moved)
	require.NoError(t, err)
	require.Equal(t, "late review", updated.Title)

	err = NewClient(conn, "u2").RemoveEvent(ctx, added.ID)
	require.Equal(t, codes.NotFound, status.Code(err))

	require.NoError(t, client.RemoveEvent(ctx, added.ID))
	err = client.RemoveEvent(ctx, added.ID)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestEventKeepsOffset(t *testing.T) {
	ctx := context.Background()
	client := NewClient(startServer(t, app.Config{}), "u1")

	est := time.FixedZone("", -5*60*60)
	e := storage.Event{
		Title:      "late call",
		StartTime:  time.Date(2024, 1, 1, 23, 30, 0, 0, est),
		EndTime:    time.Date(2024, 1, 2, 0, 15, 0, 0, est),
		Recurrence: &storage.Recurrence{Frequency: storage.FrequencyWeekly, Interval: 1, Count: 3},
		Exceptions: []util.Date{{Year: 2024, Month: time.January, Day: 8}},
	}
	added, err := client.AddEvent(ctx, e)
	require.NoError(t, err)
	_, offset := added.StartTime.Zone()
	require.Equal(t, -5*60*60, offset)
	require.Equal(t, e.Exceptions, added.Exceptions)

	list, err := client.ListOccurrences(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list.Events, 2)
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	conn := startServer(t, app.Config{RejectConflicts: true})
	client := NewClient(conn, "u1")

	_, err := client.AddEvent(ctx, dailyReview())
	require.NoError(t, err)

	invalid := dailyReview()
	invalid.Recurrence.Frequency = "HOURLY"
	reversed := dailyReview()
	reversed.EndTime = reversed.StartTime

	tests := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{
			name: "no event",
			call: func() error { return client.callStruct(ctx, "AddEvent", &structpb.Struct{}, &EventResponse{}) },
			code: codes.InvalidArgument,
		},
		{
			name: "unknown event field",
			call: func() error {
				req, err := structpb.NewStruct(map[string]interface{}{"event": map[string]interface{}{"what": "x"}})
				require.NoError(t, err)
				return client.callStruct(ctx, "AddEvent", req, &EventResponse{})
			},
			code: codes.InvalidArgument,
		},
		{
			name: "invalid rule",
			call: func() error { _, err := client.AddEvent(ctx, invalid); return err },
			code: codes.InvalidArgument,
		},
		{
			name: "empty interval",
			call: func() error { _, err := client.AddEvent(ctx, reversed); return err },
			code: codes.InvalidArgument,
		},
		{
			name: "conflict",
			call: func() error { _, err := client.AddEvent(ctx, dailyReview()); return err },
			code: codes.AlreadyExists,
		},
		{
			name: "reversed range",
			call: func() error {
				_, err := client.ListOccurrences(ctx, time.Now(), time.Now().Add(-time.Hour))
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "no range end",
			call: func() error {
				req, err := structpb.NewStruct(map[string]interface{}{"start": "2024-01-01T00:00:00Z"})
				require.NoError(t, err)
				return client.callStruct(ctx, "ListOccurrences", req, &OccurrencesResponse{})
			},
			code: codes.InvalidArgument,
		},
		{
			name: "malformed range",
			call: func() error {
				req, err := structpb.NewStruct(map[string]interface{}{"start": "yesterday", "end": "today"})
				require.NoError(t, err)
				return client.callStruct(ctx, "CheckConflicts", req, &OccurrencesResponse{})
			},
			code: codes.InvalidArgument,
		},
		{
			name: "no owner",
			call: func() error {
				_, err := NewClient(conn, "").ListOccurrences(ctx, time.Now(), time.Now())
				return err
			},
			code: codes.Unauthenticated,
		},
		{
			name: "missing event",
			call: func() error { return client.RemoveOccurrence(ctx, "missing") },
			code: codes.NotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, status.Code(tt.call()))
		})
	}
}
