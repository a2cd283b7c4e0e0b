package eventstream_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/eventstream"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type fakeSource struct {
	ch         chan domain.Event
	subscribed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan domain.Event, 8), subscribed: make(chan struct{})}
}

func (f *fakeSource) Subscribe(int) (<-chan domain.Event, func()) {
	close(f.subscribed)
	return f.ch, func() {}
}

func startServer(t *testing.T, source *fakeSource) (*eventstream.Client, context.CancelFunc, <-chan error) {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()

	lis := bufconn.Listen(1 << 20)
	srv := eventstream.NewServer(source, log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	client, err := eventstream.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, cancel, done
}

func TestSubscribeRequest_Matches(t *testing.T) {
	e := domain.Event{Kind: domain.EventTaskAssigned, ExecutionID: 4}

	assert.True(t, (&eventstream.SubscribeRequest{}).Matches(e))
	assert.True(t, (&eventstream.SubscribeRequest{ExecutionID: 4}).Matches(e))
	assert.False(t, (&eventstream.SubscribeRequest{ExecutionID: 5}).Matches(e))
	assert.True(t, (&eventstream.SubscribeRequest{Kinds: []domain.EventKind{domain.EventTaskAssigned}}).Matches(e))
	assert.False(t, (&eventstream.SubscribeRequest{Kinds: []domain.EventKind{domain.EventTaskFailed}}).Matches(e))
}

func TestStream_DeliversFilteredEvents(t *testing.T) {
	source := newFakeSource()
	client, cancel, done := startServer(t, source)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	sub, err := client.Subscribe(ctx, eventstream.SubscribeRequest{ExecutionID: 9})
	require.NoError(t, err)

	select {
	case <-source.subscribed:
	case <-ctx.Done():
		t.Fatal("server never subscribed")
	}

	match := true
	source.ch <- domain.Event{ID: "skip", Kind: domain.EventTaskAssigned, ExecutionID: 1}
	source.ch <- domain.Event{ID: "keep", Kind: domain.EventVerificationCompleted, ExecutionID: 9,
		TaskIndex: domain.Index(1), Match: &match, Outputs: []string{"ipfs://o"}}

	got, err := sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
	assert.Equal(t, domain.EventVerificationCompleted, got.Kind)
	require.NotNil(t, got.TaskIndex)
	assert.Equal(t, uint64(1), *got.TaskIndex)
	require.NotNil(t, got.Match)
	assert.True(t, *got.Match)
	assert.Equal(t, []string{"ipfs://o"}, got.Outputs)

	cancel()
	require.NoError(t, <-done)
	_, err = sub.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
