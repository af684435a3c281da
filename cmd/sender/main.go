package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/notify"
	"github.com/lomoval/calendar/internal/rabbit"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/sender_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func send(delivery amqp.Delivery) {
	m, err := notify.Decode(delivery.Body)
	if err != nil {
		log.Errorf("failed to parse bytes: %s", err)
		return
	}
	entry := log.WithField("kind", m.Kind).WithField("owner", m.OwnerID).WithField("event", m.EventID)
	if m.OccurrenceID != "" {
		entry = entry.WithField("occurrence", m.OccurrenceID)
	}
	entry.WithField("time", m.Time).Infof("sending message %q", m.Title)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if err := r.Consume(ctx, send); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("failed to consume messages: %v", err)
	}
}
