package internalgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type methodHandler = func(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error)

func RegisterEventsServer(r grpc.ServiceRegistrar, srv EventsServer) {
	r.RegisterService(&eventsServiceDesc, srv)
}

var eventsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EventsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddEvent",
			Handler: unaryHandler("AddEvent", func(srv EventsServer, ctx context.Context, r *structpb.Struct) (interface{}, error) {
				return srv.AddEvent(ctx, r)
			}),
		},
		{
			MethodName: "UpdateEvent",
			Handler: unaryHandler("UpdateEvent", func(srv EventsServer, ctx context.Context, r *structpb.Struct) (interface{}, error) {
				return srv.UpdateEvent(ctx, r)
			}),
		},
		{
			MethodName: "RemoveEvent",
			Handler: unaryHandler("RemoveEvent", func(srv EventsServer, ctx context.Context, r *wrapperspb.StringValue) (interface{}, error) {
				return srv.RemoveEvent(ctx, r)
			}),
		},
		{
			MethodName: "ListOccurrences",
			Handler: unaryHandler("ListOccurrences", func(srv EventsServer, ctx context.Context, r *structpb.Struct) (interface{}, error) {
				return srv.ListOccurrences(ctx, r)
			}),
		},
		{
			MethodName: "CheckConflicts",
			Handler: unaryHandler("CheckConflicts", func(srv EventsServer, ctx context.Context, r *structpb.Struct) (interface{}, error) {
				return srv.CheckConflicts(ctx, r)
			}),
		},
		{
			MethodName: "RemoveOccurrence",
			Handler: unaryHandler("RemoveOccurrence", func(srv EventsServer, ctx context.Context, r *wrapperspb.StringValue) (interface{}, error) {
				return srv.RemoveOccurrence(ctx, r)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendar.Events",
}

// unaryHandler decodes the request and runs call through the server interceptor, the way
// protoc-gen-go-grpc handlers do.
func unaryHandler[Req any](
	method string,
	call func(srv EventsServer, ctx context.Context, r *Req) (interface{}, error),
) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EventsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EventsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
