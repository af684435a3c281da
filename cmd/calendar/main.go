package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lomoval/calendar/internal/app"
	"github.com/lomoval/calendar/internal/logger"
	"github.com/lomoval/calendar/internal/notify"
	"github.com/lomoval/calendar/internal/rabbit"
	internalgrpc "github.com/lomoval/calendar/internal/server/grpc"
	internalhttp "github.com/lomoval/calendar/internal/server/http"
	"github.com/lomoval/calendar/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func newNotifier(config NotifierConfig) (notify.Notifier, func(), error) {
	switch config.Type {
	case "", "log":
		return notify.LogNotifier{}, func() {}, nil
	case "rabbit":
		r := rabbit.New(config.Rabbit)
		if err := r.Connect(); err != nil {
			return nil, nil, err
		}
		return notify.NewQueueNotifier(r), func() {
			if err := r.Close(); err != nil {
				log.Errorf("failed to close broker connection: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier type %s", config.Type)
	}
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

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
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		if err := stor.Close(ctx); err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
	}()

	notifier, closeNotifier, err := newNotifier(config.Notifier)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer closeNotifier()

	calendar := app.New(config.App(), stor, notifier)
	httpServer := internalhttp.NewServer(config.HTTPServer, calendar)
	grpcServer := internalgrpc.NewServer(config.GrpcServer, calendar)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := httpServer.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
		if err := grpcServer.Stop(ctx); err != nil {
			log.Error("failed to stop grpc server: " + err.Error())
		}
	}()

	log.Info("calendar is running...")

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := httpServer.Start(ctx); err != nil {
			log.Error("failed to start http server: " + err.Error())
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := grpcServer.Start(ctx); err != nil {
			log.Error("failed to start grpc server: " + err.Error())
			cancel()
		}
	}()
	wg.Wait()
}
