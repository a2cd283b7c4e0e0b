// Package eventstream serves published events to remote observers over a
// server-streaming gRPC method. Messages are JSON encoded domain events.
package eventstream

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "splitup.events.v1.EventStream"

const subscribeMethod = "/" + ServiceName + "/Subscribe"

// SubscribeRequest filters the stream. Empty fields match everything.
type SubscribeRequest struct {
	Kinds       []domain.EventKind `json:"kinds,omitempty"`
	ExecutionID domain.ExecutionID `json:"execution_id,omitempty"`
}

// Matches reports whether e passes the filter.
func (r *SubscribeRequest) Matches(e domain.Event) bool {
	if len(r.Kinds) > 0 && !slices.Contains(r.Kinds, e.Kind) {
		return false
	}
	return r.ExecutionID == 0 || r.ExecutionID == e.ExecutionID
}

type eventStreamServer interface {
	Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*eventStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "splitup/events/v1",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(eventStreamServer).Subscribe(req, stream)
}

// Server streams events from an EventSource to gRPC subscribers.
type Server struct {
	source     ports.EventSource
	logger     ports.Logger
	grpcServer *grpc.Server

	stopOnce sync.Once
	stopping chan struct{}
}

// NewServer creates a Server reading from source.
func NewServer(source ports.EventSource, logger ports.Logger) *Server {
	s := &Server{
		source:     source,
		logger:     logger,
		grpcServer: grpc.NewServer(),
		stopping:   make(chan struct{}),
	}
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Subscribe implements the streaming method.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	ch, cancel := s.source.Subscribe(0)
	defer cancel()
	s.logger.Debug("event subscriber attached", "kinds", len(req.Kinds), "execution_id", req.ExecutionID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if !req.Matches(e) {
				continue
			}
			if err := stream.SendMsg(&e); err != nil {
				return err
			}
		}
	}
}

// Serve accepts connections on lis until ctx is done, then drains open streams.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()
	s.logger.Info("event stream listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return zerr.Wrap(err, "event stream server failed")
	}
}

// Stop ends every open stream and stops the server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
		s.grpcServer.GracefulStop()
	})
}
