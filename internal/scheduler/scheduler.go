package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lomoval/calendar/internal/clock"
	"github.com/lomoval/calendar/internal/notify"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultReminderSpec = "@every 1m"
	DefaultCleanupSpec  = "@every 1h"
	DefaultRetention    = 365 * 24 * time.Hour
	DefaultJobTimeout   = 30 * time.Second
)

type Config struct {
	ReminderSpec string
	CleanupSpec  string
	// Retention is how long finished events are kept.
	Retention  time.Duration
	JobTimeout time.Duration
}

type Scheduler struct {
	storage  storage.Storage
	expander *recurrence.Expander
	notifier notify.Notifier
	clock    clock.Clock
	cron     *cron.Cron

	retention  time.Duration
	jobTimeout time.Duration

	mu       sync.Mutex
	lastScan time.Time
}

func New(
	config Config,
	stor storage.Storage,
	expander *recurrence.Expander,
	notifier notify.Notifier,
	clk clock.Clock,
) (*Scheduler, error) {
	if config.ReminderSpec == "" {
		config.ReminderSpec = DefaultReminderSpec
	}
	if config.CleanupSpec == "" {
		config.CleanupSpec = DefaultCleanupSpec
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	cronLogger := cron.PrintfLogger(log.StandardLogger())
	s := &Scheduler{
		storage:    stor,
		expander:   expander,
		notifier:   notifier,
		clock:      clk,
		cron:       cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		retention:  config.Retention,
		jobTimeout: config.JobTimeout,
		lastScan:   clk.Now().Add(-time.Minute),
	}

	if _, err := s.cron.AddFunc(config.ReminderSpec, s.reminderJob); err != nil {
		return nil, fmt.Errorf("incorrect reminder schedule %q: %w", config.ReminderSpec, err)
	}
	if _, err := s.cron.AddFunc(config.CleanupSpec, s.cleanupJob); err != nil {
		return nil, fmt.Errorf("incorrect cleanup schedule %q: %w", config.CleanupSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	log.Info("scheduler is running...")
	s.cron.Start()
}

// Stop stops the jobs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) reminderJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	sent, err := s.ScanReminders(ctx)
	if err != nil {
		log.Errorf("failed to scan reminders: %v", err)
		return
	}
	log.Debugf("sent %d reminders", sent)
}

func (s *Scheduler) cleanupJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	removed, err := s.Cleanup(ctx)
	if err != nil {
		log.Errorf("failed to remove old events: %v", err)
		return
	}
	log.Infof("removed %d old events", removed)
}

// ScanReminders sends a reminder for every occurrence whose notification time falls into
// [last scan, now). The window is not advanced when events can not be read.
func (s *Scheduler) ScanReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.lastScan
	to := s.clock.Now()
	if !to.After(from) {
		return 0, nil
	}

	events, err := s.storage.FindNotifiable(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to get events: %w", err)
	}
	log.Debugf("get events: %s - %s", from, to)

	sent := 0
	for _, e := range events {
		lead := time.Duration(e.NotifyBefore) * time.Minute
		res, err := s.expander.Expand(ctx, []storage.Event{e}, from.Add(lead), to.Add(lead))
		if err != nil {
			log.WithField("event", e.ID).Errorf("failed to expand event: %v", err)
			continue
		}
		for _, o := range res.Occurrences {
			notifyAt := o.StartTime.Add(-lead)
			if notifyAt.Before(from) || !notifyAt.Before(to) {
				continue
			}
			msg := notify.Message{
				Kind:         notify.KindReminder,
				OwnerID:      o.OwnerID,
				EventID:      o.EventID(),
				OccurrenceID: o.ID,
				Title:        o.Title,
				Time:         o.StartTime,
			}
			if err := s.notifier.Notify(ctx, msg); err != nil {
				log.WithField("event", e.ID).Errorf("failed to send reminder: %v", err)
				continue
			}
			sent++
		}
	}
	s.lastScan = to
	return sent, nil
}

// Cleanup removes events finished before now minus the retention period.
func (s *Scheduler) Cleanup(ctx context.Context) (int64, error) {
	removed, err := s.storage.RemoveBefore(ctx, s.clock.Now().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("failed to remove events: %w", err)
	}
	return removed, nil
}
