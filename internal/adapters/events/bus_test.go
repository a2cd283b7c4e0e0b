package events_test

import (
	"context"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/splitup/internal/adapters/events"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return events.NewBus(log)
}

func TestBus_FanOut(t *testing.T) {
	bus := newBus(t)

	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(context.Background(), domain.Event{ID: "1", Kind: domain.EventExecutionRequested})

	assert.Equal(t, domain.EventExecutionRequested, (<-a).Kind)
	assert.Equal(t, domain.EventExecutionRequested, (<-b).Kind)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := newBus(t)

		slow, cancelSlow := bus.Subscribe(1)
		defer cancelSlow()
		fast, cancelFast := bus.Subscribe(8)
		defer cancelFast()

		done := make(chan struct{})
		go func() {
			for i := range 3 {
				bus.Publish(context.Background(), domain.Event{ID: string(rune('a' + i)), Kind: domain.EventTaskAssigned})
			}
			close(done)
		}()

		synctest.Wait()
		select {
		case <-done:
		default:
			t.Fatal("publish blocked on a full subscriber")
		}

		assert.Len(t, slow, 1)
		assert.Len(t, fast, 3)
		assert.Equal(t, uint64(2), bus.Dropped())
	})
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := newBus(t)

	ch, cancel := bus.Subscribe(0)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(context.Background(), domain.Event{Kind: domain.EventTaskStarted})
}

func TestBus_Close(t *testing.T) {
	bus := newBus(t)

	ch, cancel := bus.Subscribe(1)
	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestRecorder(t *testing.T) {
	rec := events.NewRecorder()
	rec.Publish(context.Background(), domain.Event{Kind: domain.EventTaskRegistered})
	rec.Publish(context.Background(), domain.Event{Kind: domain.EventModelRegistered})

	require.Len(t, rec.Events(), 2)
	assert.Equal(t, []domain.EventKind{domain.EventTaskRegistered, domain.EventModelRegistered}, rec.Kinds())

	rec.Reset()
	assert.Empty(t, rec.Events())
}
