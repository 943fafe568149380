package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_PublishConsume(t *testing.T) {
	q := NewInMemoryQueueAdapter(zerolog.Nop())
	defer q.Close()

	var mu sync.Mutex
	var got []string
	err := q.StartConsuming(context.Background(), "scan_events", func(_ context.Context, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(data))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(context.Background(), "scan_events", []byte("a")))
	require.NoError(t, q.Publish(context.Background(), "scan_events", []byte("b")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, got)
	mu.Unlock()
}

func TestInMemoryQueue_HandlerErrorDoesNotStopConsumer(t *testing.T) {
	q := NewInMemoryQueueAdapter(zerolog.Nop())
	defer q.Close()

	calls := make(chan struct{}, 2)
	require.NoError(t, q.StartConsuming(context.Background(), "q", func(context.Context, []byte) error {
		calls <- struct{}{}
		return errors.New("boom")
	}))
	require.NoError(t, q.Publish(context.Background(), "q", []byte("1")))
	require.NoError(t, q.Publish(context.Background(), "q", []byte("2")))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}
}

func TestInMemoryQueue_StopAndRestartConsumer(t *testing.T) {
	q := NewInMemoryQueueAdapter(zerolog.Nop())
	defer q.Close()

	noop := func(context.Context, []byte) error { return nil }
	require.NoError(t, q.StartConsuming(context.Background(), "q", noop))
	assert.Error(t, q.StartConsuming(context.Background(), "q", noop))

	require.NoError(t, q.StopConsuming(context.Background(), "q"))
	require.NoError(t, q.StopConsuming(context.Background(), "q"))
	assert.NoError(t, q.StartConsuming(context.Background(), "q", noop))
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueueAdapter(zerolog.Nop())
	require.NoError(t, q.StartConsuming(context.Background(), "q", func(context.Context, []byte) error { return nil }))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Publish(context.Background(), "q", []byte("x")), ErrQueueClosed)
}

func TestInMemoryQueue_PublishTimeout(t *testing.T) {
	q := NewInMemoryQueueAdapter(zerolog.Nop())
	defer q.Close()
	q.publishTimeout = 10 * time.Millisecond

	for i := 0; i < defaultQueueBuffer; i++ {
		require.NoError(t, q.Publish(context.Background(), "full", []byte("x")))
	}
	assert.Error(t, q.Publish(context.Background(), "full", []byte("overflow")))
}
