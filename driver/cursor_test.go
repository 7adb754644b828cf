package driver

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/datazip-inc/rxmongo/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector waits for the stream to terminate with unbounded demand.
type collector[T any] struct {
	mu    sync.Mutex
	items []T
	errs  []error
	done  chan struct{}
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{done: make(chan struct{})}
}

func (c *collector[T]) subscriber() *rx.SubscriberFuncs[T] {
	return &rx.SubscriberFuncs[T]{
		Next: func(item T) {
			c.mu.Lock()
			c.items = append(c.items, item)
			c.mu.Unlock()
		},
		Err: func(err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
			close(c.done)
		},
		Completed: func() { close(c.done) },
	}
}

func (c *collector[T]) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("stream did not terminate")
	}
}

func TestSliceCursorStreamsOneBatch(t *testing.T) {
	var fetches int
	publisher := rx.NewCursorPublisher(newSliceCursor(func() ([]string, error) {
		fetches++
		return []string{"users", "orders", "events"}, nil
	}))

	sink := newCollector[string]()
	publisher.Subscribe(sink.subscriber())
	sink.wait(t)

	assert.Equal(t, []string{"users", "orders", "events"}, sink.items)
	assert.Empty(t, sink.errs)
	assert.Equal(t, 1, fetches)
}

func TestSliceCursorPropagatesError(t *testing.T) {
	errList := errors.New("not authorized")
	publisher := rx.NewCursorPublisher(newSliceCursor(func() ([]string, error) {
		return nil, errList
	}))

	sink := newCollector[string]()
	publisher.Subscribe(sink.subscriber())
	sink.wait(t)

	assert.Empty(t, sink.items)
	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], errList)
}

func TestRunAsyncEmitsValue(t *testing.T) {
	publisher := rx.NewSingleResultPublisher(runAsync(func() (int64, error) {
		return 42, nil
	}))

	sink := newCollector[int64]()
	publisher.Subscribe(sink.subscriber())
	sink.wait(t)

	assert.Equal(t, []int64{42}, sink.items)
	assert.Empty(t, sink.errs)
}

func TestRunAsyncPropagatesError(t *testing.T) {
	errCount := errors.New("command failed")
	publisher := rx.NewSingleResultPublisher(runAsync(func() (int64, error) {
		return 0, errCount
	}))

	sink := newCollector[int64]()
	publisher.Subscribe(sink.subscriber())
	sink.wait(t)

	assert.Empty(t, sink.items)
	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], errCount)
}

func TestRunAckMapsSuccessToSingleAck(t *testing.T) {
	publisher := rx.NewSingleResultPublisher(runAck(func() error {
		return nil
	}))

	sink := newCollector[rx.Ack]()
	publisher.Subscribe(sink.subscriber())
	sink.wait(t)

	assert.Equal(t, []rx.Ack{{}}, sink.items)
	assert.Empty(t, sink.errs)
}

func TestRunAsyncIsLazyUntilDemand(t *testing.T) {
	var ran bool
	publisher := rx.NewSingleResultPublisher(runAsync(func() (int64, error) {
		ran = true
		return 0, nil
	}))

	sink := newCollector[int64]()
	publisher.Subscribe(&rx.SubscriberFuncs[int64]{
		Subscribed: func(rx.Subscription) {}, // hold back demand
		Completed:  func() { close(sink.done) },
	})

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran)
}
