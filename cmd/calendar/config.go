package main

import (
	"github.com/lomoval/calendar/internal/app"
	"github.com/lomoval/calendar/internal/config"
	"github.com/lomoval/calendar/internal/conflict"
	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/rabbit"
	"github.com/lomoval/calendar/internal/recurrence"
	internalgrpc "github.com/lomoval/calendar/internal/server/grpc"
	internalhttp "github.com/lomoval/calendar/internal/server/http"
	"github.com/lomoval/calendar/internal/storagebuilder"
)

type NotifierConfig struct {
	// Type is "log" or "rabbit".
	Type   string
	Rabbit rabbit.Config
}

type Config struct {
	HTTPServer      internalhttp.Config
	GrpcServer      internalgrpc.Config
	Logger          logger.Config
	Storage         storagebuilder.Config
	Expander        recurrence.Config
	Conflict        conflict.Config
	RejectConflicts bool `mapstructure:"reject_conflicts"`
	Notifier        NotifierConfig
}

func (c Config) App() app.Config {
	return app.Config{Expander: c.Expander, Conflict: c.Conflict, RejectConflicts: c.RejectConflicts}
}

func NewConfig(configFile string) (Config, error) {
	c := Config{}
	err := config.Load(configFile, map[string]interface{}{
		"httpServer.host":       "127.0.0.1",
		"httpServer.port":       "8005",
		"grpcServer.host":       "127.0.0.1",
		"grpcServer.port":       "8006",
		"logger.level":          "WARN",
		"storage.storageType":   "memory",
		"expander.maxSteps":     recurrence.DefaultMaxSteps,
		"conflict.storeTimeout": conflict.DefaultStoreTimeout,
		"reject_conflicts":      false,
		"notifier.type":         "log",
		"notifier.rabbit.host":  "127.0.0.1",
		"notifier.rabbit.port":  "5672",
		"notifier.rabbit.queue": "calendar.notify",
	}, &c)
	return c, err
}
