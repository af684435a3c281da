package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	log "github.com/sirupsen/logrus"
)

const dbErrUniqueViolation = "23505"

const selectEvents = "SELECT id, title, description, color, location, start_timestamp, end_timestamp, all_day, " +
	"frequency, recur_interval, by_weekday, recur_count, recur_until, exceptions, owner_id, notify_before, " +
	"time_zone, start_offset " +
	"FROM Events "

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

type eventRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Color        string         `db:"color"`
	Location     string         `db:"location"`
	StartTime    time.Time      `db:"start_timestamp"`
	EndTime      time.Time      `db:"end_timestamp"`
	AllDay       bool           `db:"all_day"`
	Frequency    sql.NullString `db:"frequency"`
	Interval     sql.NullInt32  `db:"recur_interval"`
	ByWeekday    pq.Int64Array  `db:"by_weekday"`
	Count        sql.NullInt32  `db:"recur_count"`
	Until        sql.NullTime   `db:"recur_until"`
	Exceptions   pq.StringArray `db:"exceptions"`
	OwnerID      string         `db:"owner_id"`
	NotifyBefore int32          `db:"notify_before"`
	TimeZone     string         `db:"time_zone"`
	StartOffset  int            `db:"start_offset"`
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return fmt.Errorf("failed to connect to %s:%d: %w", s.host, s.port, storage.ErrStoreUnavailable)
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	row := toRow(*e)
	_, err := s.db.NamedExecContext(
		ctx,
		"INSERT INTO Events(id, title, description, color, location, start_timestamp, end_timestamp, all_day, "+
			"frequency, recur_interval, by_weekday, recur_count, recur_until, exceptions, owner_id, notify_before, "+
			"time_zone, start_offset) "+
			"VALUES(:id, :title, :description, :color, :location, :start_timestamp, :end_timestamp, :all_day, "+
			":frequency, :recur_interval, :by_weekday, :recur_count, :recur_until, :exceptions, :owner_id, :notify_before, "+
			":time_zone, :start_offset)",
		row,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateEventID)
	}
	return wrapErr(err)
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, e storage.Event) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = id

	query, args, err := s.db.BindNamed(
		"UPDATE Events SET title=:title, description=:description, color=:color, location=:location, "+
			"start_timestamp=:start_timestamp, end_timestamp=:end_timestamp, all_day=:all_day, "+
			"frequency=:frequency, recur_interval=:recur_interval, by_weekday=:by_weekday, "+
			"recur_count=:recur_count, recur_until=:recur_until, exceptions=:exceptions, "+
			"owner_id=:owner_id, notify_before=:notify_before, time_zone=:time_zone, start_offset=:start_offset "+
			"WHERE id=:id RETURNING TRUE",
		toRow(e),
	)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}

	var found bool
	err = s.db.GetContext(ctx, &found, query, args...)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !found) {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return wrapErr(err)
}

func (s *Storage) RemoveEvent(ctx context.Context, id string) error {
	var found bool
	err := s.db.GetContext(ctx, &found, "DELETE FROM Events WHERE id=$1 RETURNING TRUE", id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !found) {
		return fmt.Errorf("failed to remove event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	return wrapErr(err)
}

func (s *Storage) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, selectEvents+"WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("failed to get event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, wrapErr(err)
	}
	return row.toEvent()
}

// FindCandidateEvents applies storage.IsCandidate on the database side.
func (s *Storage) FindCandidateEvents(
	ctx context.Context,
	ownerID string,
	start time.Time,
	end time.Time,
) ([]storage.Event, error) {
	return s.selectEvents(
		ctx,
		"WHERE owner_id=$1 AND (frequency IS NOT NULL OR (start_timestamp<=$3 AND end_timestamp>=$2)) "+
			"ORDER BY start_timestamp, id",
		ownerID,
		start,
		end,
	)
}

func (s *Storage) FindNotifiable(ctx context.Context, from time.Time, to time.Time) ([]storage.Event, error) {
	return s.selectEvents(
		ctx,
		"WHERE notify_before > 0 AND (frequency IS NOT NULL OR "+
			"((start_timestamp - (interval '1' minute * notify_before))>=$1 "+
			"AND (start_timestamp - (interval '1' minute * notify_before))<=$2)) "+
			"ORDER BY start_timestamp, id",
		from,
		to,
	)
}

func (s *Storage) RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		"DELETE FROM Events WHERE (frequency IS NULL AND end_timestamp < $1) "+
			"OR (frequency IS NOT NULL AND recur_until IS NOT NULL AND recur_until < $1)",
		cutoff,
	)
	if err != nil {
		return 0, wrapErr(err)
	}
	return res.RowsAffected()
}

func (s *Storage) selectEvents(ctx context.Context, where string, args ...interface{}) ([]storage.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, selectEvents+where, args...); err != nil {
		return nil, wrapErr(err)
	}

	events := make([]storage.Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("query failed: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%v: %w", err, storage.ErrStoreUnavailable)
}

// toRow keeps instants in UTC and the event zone aside: exception dates and the walk are
// calendar days of the event's own location.
func toRow(e storage.Event) eventRow {
	_, offset := e.StartTime.Zone()
	row := eventRow{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Color:        e.Color,
		Location:     e.Location,
		StartTime:    e.StartTime.UTC(),
		EndTime:      e.EndTime.UTC(),
		AllDay:       e.AllDay,
		Exceptions:   pq.StringArray{},
		OwnerID:      e.OwnerID,
		NotifyBefore: e.NotifyBefore,
		TimeZone:     e.StartTime.Location().String(),
		StartOffset:  offset,
	}
	for _, d := range e.Exceptions {
		row.Exceptions = append(row.Exceptions, d.String())
	}
	if r := e.Recurrence; r != nil {
		row.Frequency = sql.NullString{String: string(r.Frequency), Valid: true}
		row.Interval = sql.NullInt32{Int32: int32(r.Interval), Valid: true}
		if r.Count > 0 {
			row.Count = sql.NullInt32{Int32: int32(r.Count), Valid: true}
		}
		if r.Until != nil {
			row.Until = sql.NullTime{Time: r.Until.UTC(), Valid: true}
		}
		for _, wd := range r.ByWeekday {
			row.ByWeekday = append(row.ByWeekday, int64(wd))
		}
	}
	return row
}

func (r eventRow) toEvent() (storage.Event, error) {
	loc := zoneOf(r.TimeZone, r.StartOffset, r.StartTime)
	e := storage.Event{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Color:        r.Color,
		Location:     r.Location,
		StartTime:    r.StartTime.In(loc),
		EndTime:      r.EndTime.In(loc),
		AllDay:       r.AllDay,
		OwnerID:      r.OwnerID,
		NotifyBefore: r.NotifyBefore,
	}
	for _, s := range r.Exceptions {
		d, err := util.ParseDate(s)
		if err != nil {
			return storage.Event{}, fmt.Errorf("event %q has broken exception date: %w", r.ID, err)
		}
		e.Exceptions = append(e.Exceptions, d)
	}
	if r.Frequency.Valid {
		rule := &storage.Recurrence{
			Frequency: storage.Frequency(r.Frequency.String),
			Interval:  int(r.Interval.Int32),
			Count:     int(r.Count.Int32),
		}
		for _, wd := range r.ByWeekday {
			rule.ByWeekday = append(rule.ByWeekday, int(wd))
		}
		if r.Until.Valid {
			until := r.Until.Time.In(loc)
			rule.Until = &until
		}
		e.Recurrence = rule
	}
	return e, nil
}

// zoneOf restores the event location. A named zone is used when it is known here and still
// gives the stored offset at start, otherwise a fixed zone with that offset.
func zoneOf(name string, offset int, start time.Time) *time.Location {
	if name != "" && name != "Local" {
		if loc, err := time.LoadLocation(name); err == nil {
			if _, off := start.In(loc).Zone(); off == offset {
				return loc
			}
		}
	}
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone(name, offset)
}

var _ storage.Storage = (*Storage)(nil)
