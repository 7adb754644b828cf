package rx

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFetchFailed = errors.New("connection reset by peer")

func TestSingleResultEmitsValueThenCompletes(t *testing.T) {
	var invocations int32
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		atomic.AddInt32(&invocations, 1)
		callback(42, true, nil)
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)
	require.NotNil(t, sub.subscription)

	sub.subscription.Request(1)
	assert.Equal(t, []int{42}, sub.received())
	assert.Equal(t, 1, sub.completed())
	assert.Empty(t, sub.errors())
	assert.Equal(t, int32(1), atomic.LoadInt32(&invocations))
}

func TestSingleResultIsLazy(t *testing.T) {
	var invocations int32
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		atomic.AddInt32(&invocations, 1)
		callback(1, true, nil)
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)

	// no demand signalled, so the operation must never run
	assert.Equal(t, int32(0), atomic.LoadInt32(&invocations))
}

func TestSingleResultRunsAtMostOnce(t *testing.T) {
	var invocations int32
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		atomic.AddInt32(&invocations, 1)
		callback(7, true, nil)
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)
	sub.subscription.Request(1)
	sub.subscription.Request(3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&invocations))
	assert.Equal(t, []int{7}, sub.received())
	assert.Equal(t, 1, sub.completed())
}

func TestSingleResultBareSuccessCompletesWithoutItem(t *testing.T) {
	publisher := NewSingleResultPublisher(func(callback func(Ack, bool, error)) {
		callback(Ack{}, false, nil)
	})

	sub := newRecordingSubscriber[Ack]()
	publisher.Subscribe(sub)
	sub.subscription.Request(1)

	assert.Empty(t, sub.received())
	assert.Equal(t, 1, sub.completed())
	assert.Empty(t, sub.errors())
}

func TestSingleResultFailure(t *testing.T) {
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		callback(0, false, errFetchFailed)
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)
	sub.subscription.Request(1)

	assert.Empty(t, sub.received())
	assert.Equal(t, 0, sub.completed())
	require.Len(t, sub.errors(), 1)
	assert.ErrorIs(t, sub.errors()[0], errFetchFailed)
}

func TestSingleResultCancelSuppressesLateCallback(t *testing.T) {
	var settle func(int, bool, error)
	var mu sync.Mutex
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		mu.Lock()
		settle = callback
		mu.Unlock()
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)
	sub.subscription.Request(1)
	sub.subscription.Cancel()

	mu.Lock()
	require.NotNil(t, settle)
	settle(99, true, nil)
	mu.Unlock()

	assert.Empty(t, sub.received())
	assert.Equal(t, 0, sub.completed())
	assert.Empty(t, sub.errors())
}

func TestSingleResultIllegalDemand(t *testing.T) {
	var invocations int32
	publisher := NewSingleResultPublisher(func(callback func(int, bool, error)) {
		atomic.AddInt32(&invocations, 1)
	})

	sub := newRecordingSubscriber[int]()
	publisher.Subscribe(sub)
	sub.subscription.Request(0)

	require.Len(t, sub.errors(), 1)
	assert.ErrorIs(t, sub.errors()[0], ErrIllegalDemand)
	assert.Equal(t, int32(0), atomic.LoadInt32(&invocations))

	// the stream is dead; further demand is ignored
	sub.subscription.Request(1)
	assert.Equal(t, int32(0), atomic.LoadInt32(&invocations))
	assert.Len(t, sub.errors(), 1)
}

func TestSingleResultAsyncCallbackDelivery(t *testing.T) {
	publisher := NewSingleResultPublisher(func(callback func(string, bool, error)) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			callback("late", true, nil)
		}()
	})

	sub := newRecordingSubscriber[string]()
	publisher.Subscribe(sub)
	sub.subscription.Request(1)

	require.True(t, sub.waitDone(time.Second))
	assert.Equal(t, []string{"late"}, sub.received())
	assert.Equal(t, 1, sub.completed())
}
