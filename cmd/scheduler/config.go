package main

import (
	"github.com/lomoval/calendar/internal/config"
	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/rabbit"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/scheduler"
	"github.com/lomoval/calendar/internal/storagebuilder"
)

type Config struct {
	Logger    logger.Config
	Rabbit    rabbit.Config
	Storage   storagebuilder.Config
	Expander  recurrence.Config
	Scheduler scheduler.Config
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"rabbit.host":            "127.0.0.1",
		"rabbit.port":            "5672",
		"rabbit.user":            "user",
		"rabbit.password":        "pass",
		"rabbit.queue":           "calendar.notify",
		"logger.level":           "WARN",
		"storage.storageType":    "memory",
		"expander.maxSteps":      recurrence.DefaultMaxSteps,
		"scheduler.reminderSpec": scheduler.DefaultReminderSpec,
		"scheduler.cleanupSpec":  scheduler.DefaultCleanupSpec,
		"scheduler.retention":    scheduler.DefaultRetention,
		"scheduler.jobTimeout":   scheduler.DefaultJobTimeout,
	}, &c)
	return c, err
}
