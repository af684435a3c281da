package main

import (
	"github.com/lomoval/calendar/internal/config"
	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/rabbit"
)

type Config struct {
	Logger logger.Config
	Rabbit rabbit.Config
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"rabbit.host":     "127.0.0.1",
		"rabbit.port":     "5672",
		"rabbit.user":     "user",
		"rabbit.password": "pass",
		"rabbit.queue":    "calendar.notify",
		"logger.level":    "WARN",
	}, &c)
	return c, err
}
