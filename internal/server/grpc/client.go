package internalgrpc

import (
	"context"
	"time"

	"github.com/golang/protobuf/ptypes/empty"
	"github.com/lomoval/calendar/internal/conflict"
	"github.com/lomoval/calendar/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls calendar.Events on behalf of one owner.
type Client struct {
	conn  grpc.ClientConnInterface
	owner string
}

func NewClient(conn grpc.ClientConnInterface, owner string) *Client {
	return &Client{conn: conn, owner: owner}
}

func (c *Client) invoke(ctx context.Context, method string, in interface{}, out interface{}) error {
	ctx = metadata.AppendToOutgoingContext(ctx, ownerKey, c.owner)
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out)
}

func (c *Client) call(ctx context.Context, method string, in interface{}, out interface{}) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	return c.callStruct(ctx, method, req, out)
}

func (c *Client) callStruct(ctx context.Context, method string, req *structpb.Struct, out interface{}) error {
	resp := new(structpb.Struct)
	if err := c.invoke(ctx, method, req, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

func (c *Client) AddEvent(ctx context.Context, e storage.Event) (storage.Event, error) {
	var resp EventResponse
	if err := c.call(ctx, "AddEvent", EventRequest{Event: &e}, &resp); err != nil {
		return storage.Event{}, err
	}
	return resp.Event, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id string, e storage.Event) (storage.Event, error) {
	var resp EventResponse
	if err := c.call(ctx, "UpdateEvent", EventRequest{ID: id, Event: &e}, &resp); err != nil {
		return storage.Event{}, err
	}
	return resp.Event, nil
}

func (c *Client) RemoveEvent(ctx context.Context, id string) error {
	return c.invoke(ctx, "RemoveEvent", wrapperspb.String(id), new(empty.Empty))
}

func (c *Client) ListOccurrences(ctx context.Context, start, end time.Time) (OccurrencesResponse, error) {
	var resp OccurrencesResponse
	req, err := rangeStruct(start, end)
	if err != nil {
		return resp, err
	}
	err = c.callStruct(ctx, "ListOccurrences", req, &resp)
	return resp, err
}

func (c *Client) CheckConflicts(ctx context.Context, start, end time.Time, excludeID string) (conflict.Result, error) {
	var res conflict.Result
	req, err := rangeStruct(start, end)
	if err != nil {
		return res, err
	}
	if excludeID != "" {
		req.Fields[fieldExclude] = structpb.NewStringValue(excludeID)
	}
	err = c.callStruct(ctx, "CheckConflicts", req, &res)
	return res, err
}

func (c *Client) RemoveOccurrence(ctx context.Context, id string) error {
	return c.invoke(ctx, "RemoveOccurrence", wrapperspb.String(id), new(empty.Empty))
}
