package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/lomoval/calendar/internal/app"
	log "github.com/sirupsen/logrus"
)

const ownerHeader = "X-User-ID"

type Config struct {
	Host string
	Port int
}

type Server struct {
	srv  *http.Server
	app  *app.App
	mux  *runtime.ServeMux
	addr string
	now  func() time.Time
}

func NewServer(config Config, app *app.App) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	s := &Server{
		addr: addr,
		app:  app,
		mux:  runtime.NewServeMux(),
		now:  time.Now,
	}
	s.routes()
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) routes() {
	s.handle(http.MethodGet, "/health", s.health)
	s.handle(http.MethodGet, "/events", s.listOccurrences)
	s.handle(http.MethodPost, "/events", s.createEvent)
	s.handle(http.MethodPost, "/events/conflicts", s.checkConflicts)
	s.handle(http.MethodGet, "/events/{id}", s.getEvent)
	s.handle(http.MethodPut, "/events/{id}", s.updateEvent)
	s.handle(http.MethodDelete, "/events/{id}", s.removeEvent)
	s.handle(http.MethodDelete, "/occurrences/{id}", s.removeOccurrence)
	s.handle(http.MethodGet, "/export/ics", s.exportICS)
}

func (s *Server) handle(method string, pattern string, h runtime.HandlerFunc) {
	if err := s.mux.HandlePath(method, pattern, h); err != nil {
		panic(fmt.Sprintf("failed to register %s %s: %v", method, pattern, err))
	}
}

func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.mux)
}

func (s *Server) Start(_ context.Context) error {
	log.Printf("starting http server on %s", s.addr)
	err := s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
