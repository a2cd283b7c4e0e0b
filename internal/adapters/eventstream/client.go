package eventstream

import (
	"context"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client subscribes to a remote event stream.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. The connection is established lazily on
// the first subscription.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, zerr.Wrap(err, "event stream client creation failed")
	}
	return &Client{conn: conn}, nil
}

// Subscription is an open event stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Subscribe opens a stream of events matching req. It ends when ctx is done.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open event stream")
	}
	if err := stream.SendMsg(&req); err != nil {
		return nil, zerr.Wrap(err, "failed to send subscription")
	}
	if err := stream.CloseSend(); err != nil {
		return nil, zerr.Wrap(err, "failed to send subscription")
	}
	return &Subscription{stream: stream}, nil
}

// Recv blocks for the next event. It returns io.EOF when the server ends the stream.
func (s *Subscription) Recv() (domain.Event, error) {
	var e domain.Event
	err := s.stream.RecvMsg(&e)
	return e, err
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
