package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventStageCompleted, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.ComplaintID)
		return boom
	})
	d.Subscribe(EventStageCompleted, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.ComplaintID)
		return nil
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		calls = append(calls, "all:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventComplaintClosed, func(context.Context, Event) error {
		calls = append(calls, "closed")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventStageCompleted, ComplaintID: "c1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:c1", "second:c1", "all:" + string(EventStageCompleted)}, calls)

	calls = nil
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintClosed}))
	assert.Equal(t, []string{"closed", "all:" + string(EventComplaintClosed)}, calls)
}

func TestDispatcherNoHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintCreated}))
}
