package internalgrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Events, ranges and results travel as google.protobuf.Struct in the proto JSON mapping,
// ids as google.protobuf.StringValue.

const (
	fieldStart   = "start"
	fieldEnd     = "end"
	fieldExclude = "excludeEventId"
)

type EventRequest struct {
	ID    string         `json:"id,omitempty"`
	Event *storage.Event `json:"event"`
}

type EventResponse struct {
	Event storage.Event `json:"event"`
}

type OccurrencesResponse struct {
	Events    []recurrence.Occurrence `json:"events"`
	Truncated []string                `json:"truncated"`
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to convert message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to convert message: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

// rangeStruct builds {start, end} with both bounds as google.protobuf.Timestamp JSON.
func rangeStruct(start, end time.Time) (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, 2)}
	for name, t := range map[string]time.Time{fieldStart: start, fieldEnd: end} {
		b, err := protojson.Marshal(timestamppb.New(t))
		if err != nil {
			return nil, fmt.Errorf("incorrect %s: %w", name, err)
		}
		v := &structpb.Value{}
		if err := protojson.Unmarshal(b, v); err != nil {
			return nil, fmt.Errorf("incorrect %s: %w", name, err)
		}
		s.Fields[name] = v
	}
	return s, nil
}

func timeField(s *structpb.Struct, name string) (time.Time, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%s is not provided", name)
	}
	b, err := protojson.Marshal(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("incorrect %s: %w", name, err)
	}
	ts := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal(b, ts); err != nil {
		return time.Time{}, fmt.Errorf("incorrect %s: %w", name, err)
	}
	return ts.AsTime(), nil
}
