package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 64})

	var mu sync.Mutex
	seen := map[int64][]int{}
	for i := 0; i < 30; i++ {
		chat := int64(i%3) + 100
		n := i
		require.NoError(t, d.Enqueue(context.Background(), chat, "send.text", "sendMessage", func() error {
			mu.Lock()
			seen[chat] = append(seen[chat], n)
			mu.Unlock()
			return nil
		}))
	}
	d.Close()

	for chat, order := range seen {
		require.Len(t, order, 10, "chat %d", chat)
		for i := 1; i < len(order); i++ {
			assert.Less(t, order[i-1], order[i], "chat %d out of order: %v", chat, order)
		}
	}
}

func TestDispatcherDoRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	defer d.Close()

	var calls atomic.Int32
	err := d.Do(context.Background(), 1, "send.text", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoReturnsFinalError(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	defer d.Close()

	boom := errors.New("chat not found")
	var calls atomic.Int32
	err := d.Do(context.Background(), -100123, "send.photo", "sendPhoto", func() error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load(), "permanent errors are not retried")
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), 1, "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Do(context.Background(), 1, "send.text", "sendMessage", nil))
}

func TestDispatcherStopsRetryingAtMaxDuration(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 10, RetryBackoff: time.Hour, MaxDuration: 20 * time.Millisecond})
	defer d.Close()

	var calls atomic.Int32
	err := d.Do(context.Background(), 5, "send.text", "sendMessage", func() error {
		calls.Add(1)
		return &net.OpError{Op: "dial", Err: errors.New("refused")}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}
