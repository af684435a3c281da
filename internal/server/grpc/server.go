package internalgrpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/golang/protobuf/ptypes/empty"
	"github.com/lomoval/calendar/internal/app"
	"github.com/lomoval/calendar/internal/conflict"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "calendar.Events"
	ownerKey    = "x-user-id"

	errEventNotProvided    = "event is not provided"
	errOwnerNotProvided    = "owner is not provided"
	errInternalServerError = "internal server error"
	errEventNotFound       = "event not found"
	errStoreUnavailable    = "event store unavailable"
)

type Config struct {
	Host string
	Port int
}

// EventsServer is the calendar.Events service.
type EventsServer interface {
	AddEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEvent(context.Context, *wrapperspb.StringValue) (*empty.Empty, error)
	ListOccurrences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckConflicts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveOccurrence(context.Context, *wrapperspb.StringValue) (*empty.Empty, error)
}

type Server struct {
	grpcServer *grpc.Server
	app        *app.App
	addr       string
}

func NewServer(config Config, app *app.App) *Server {
	s := &Server{app: app, addr: net.JoinHostPort(config.Host, strconv.Itoa(config.Port))}
	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(loggingHandler))
	RegisterEventsServer(s.grpcServer, s)
	return s
}

func (s *Server) Start(_ context.Context) error {
	lsn, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Errorf("failed to listen grpc endpoint: %v", err)
		return err
	}

	log.Printf("starting grpc server on %s", s.addr)
	return s.Serve(lsn)
}

func (s *Server) Serve(lsn net.Listener) error {
	return s.grpcServer.Serve(lsn)
}

func (s *Server) Stop(_ context.Context) error {
	s.grpcServer.GracefulStop()
	return nil
}

func (s *Server) AddEvent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	req, err := eventRequestOf(r)
	if err != nil {
		return nil, err
	}
	e := *req.Event
	e.ID = ""
	created, err := s.app.CreateEvent(ctx, owner, e)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(EventResponse{Event: created})
}

func (s *Server) UpdateEvent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	req, err := eventRequestOf(r)
	if err != nil {
		return nil, err
	}
	updated, err := s.app.UpdateEvent(ctx, owner, req.ID, *req.Event)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(EventResponse{Event: updated})
}

func (s *Server) RemoveEvent(ctx context.Context, r *wrapperspb.StringValue) (*empty.Empty, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.app.RemoveEvent(ctx, owner, r.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &empty.Empty{}, nil
}

func (s *Server) ListOccurrences(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeOf(r)
	if err != nil {
		return nil, err
	}
	res, err := s.app.ListOccurrences(ctx, owner, start, end)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := OccurrencesResponse{Events: res.Occurrences, Truncated: res.Truncated}
	if resp.Events == nil {
		resp.Events = []recurrence.Occurrence{}
	}
	if resp.Truncated == nil {
		resp.Truncated = []string{}
	}
	return reply(resp)
}

func (s *Server) CheckConflicts(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := rangeOf(r)
	if err != nil {
		return nil, err
	}
	exclude := r.GetFields()[fieldExclude].GetStringValue()
	res, err := s.app.CheckConflicts(ctx, owner, start, end, exclude)
	if err != nil {
		return nil, toStatus(err)
	}
	if res.Conflicts == nil {
		res.Conflicts = []recurrence.Occurrence{}
	}
	return reply(res)
}

func (s *Server) RemoveOccurrence(ctx context.Context, r *wrapperspb.StringValue) (*empty.Empty, error) {
	owner, err := ownerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.app.RemoveOccurrence(ctx, owner, r.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &empty.Empty{}, nil
}

func eventRequestOf(r *structpb.Struct) (EventRequest, error) {
	var req EventRequest
	if err := fromStruct(r, &req); err != nil {
		return req, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if req.Event == nil {
		return req, status.Errorf(codes.InvalidArgument, errEventNotProvided)
	}
	return req, nil
}

func rangeOf(r *structpb.Struct) (time.Time, time.Time, error) {
	start, err := timeField(r, fieldStart)
	if err != nil {
		return time.Time{}, time.Time{}, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	end, err := timeField(r, fieldEnd)
	if err != nil {
		return time.Time{}, time.Time{}, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	return start, end, nil
}

func reply(v interface{}) (*structpb.Struct, error) {
	s, err := toStruct(v)
	if err != nil {
		log.Errorf("failed to build grpc response: %v", err)
		return nil, status.Errorf(codes.Internal, errInternalServerError)
	}
	return s, nil
}

func ownerOf(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, errOwnerNotProvided)
	}
	if vs := md.Get(ownerKey); len(vs) > 0 && vs[0] != "" {
		return vs[0], nil
	}
	return "", status.Errorf(codes.Unauthenticated, errOwnerNotProvided)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFoundEvent):
		return status.Errorf(codes.NotFound, errEventNotFound)
	case errors.Is(err, conflict.ErrConflict), errors.Is(err, storage.ErrDuplicateEventID):
		return status.Errorf(codes.AlreadyExists, "%v", err)
	case errors.Is(err, storage.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.Unavailable, errStoreUnavailable)
	case errors.Is(err, storage.ErrOwnerRequired),
		errors.Is(err, storage.ErrIncorrectEventTime),
		errors.Is(err, storage.ErrInvalidRecurrenceRule),
		errors.Is(err, storage.ErrInvalidColor),
		errors.Is(err, conflict.ErrInvalidInterval),
		errors.Is(err, recurrence.ErrInvalidRange):
		return status.Errorf(codes.InvalidArgument, "%v", err)
	default:
		log.Errorf("grpc request failed: %v", err)
		return status.Errorf(codes.Internal, errInternalServerError)
	}
}
