package internalgrpc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func loggingHandler(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := log.WithField("method", info.FullMethod).
		WithField("code", status.Code(err)).
		WithField("latency", time.Since(start))
	if p, ok := peer.FromContext(ctx); ok {
		entry = entry.WithField("ip", p.Addr.String())
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		entry = entry.WithField("user-agent", md.Get("user-agent"))
	}
	entry.Info("grpc request processed")
	return resp, err
}
