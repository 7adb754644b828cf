package rx

import (
	"sync"
	"time"
)

// recordingSubscriber captures every signal it receives, in order, and trips
// done on the first terminal signal.
type recordingSubscriber[T any] struct {
	mu           sync.Mutex
	subscription Subscription
	items        []T
	errs         []error
	completions  int
	onNext       func(Subscription, T)

	done     chan struct{}
	doneOnce sync.Once
}

func newRecordingSubscriber[T any]() *recordingSubscriber[T] {
	return &recordingSubscriber[T]{done: make(chan struct{})}
}

func (r *recordingSubscriber[T]) OnSubscribe(s Subscription) {
	r.mu.Lock()
	r.subscription = s
	r.mu.Unlock()
}

func (r *recordingSubscriber[T]) OnNext(item T) {
	r.mu.Lock()
	r.items = append(r.items, item)
	hook := r.onNext
	sub := r.subscription
	r.mu.Unlock()
	if hook != nil {
		hook(sub, item)
	}
}

func (r *recordingSubscriber[T]) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *recordingSubscriber[T]) OnComplete() {
	r.mu.Lock()
	r.completions++
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *recordingSubscriber[T]) received() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recordingSubscriber[T]) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recordingSubscriber[T]) completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions
}

func (r *recordingSubscriber[T]) waitDone(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// scriptedCursor plays back a fixed batch sequence. With async set, fetch
// results are delivered from a fresh goroutine the way a real driver worker
// would; otherwise the callback runs on the fetching goroutine. gate, when
// non-nil, holds every fetch result back until the gate is closed.
type scriptedCursor struct {
	mu      sync.Mutex
	batches [][]int
	errAt   int // 1-based fetch index that fails; 0 = never
	async   bool
	gate    chan struct{}

	fetches int
	closes  int
}

func (c *scriptedCursor) FetchNext(callback func(batch []int, hasMore bool, err error)) {
	c.mu.Lock()
	c.fetches++
	fetch := c.fetches
	var batch []int
	if len(c.batches) > 0 {
		batch = c.batches[0]
		c.batches = c.batches[1:]
	}
	hasMore := len(c.batches) > 0
	c.mu.Unlock()

	deliver := func() {
		if c.gate != nil {
			<-c.gate
		}
		if c.errAt != 0 && fetch == c.errAt {
			callback(nil, false, errFetchFailed)
			return
		}
		callback(batch, hasMore, nil)
	}
	if c.async {
		go deliver()
		return
	}
	deliver()
}

func (c *scriptedCursor) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

func (c *scriptedCursor) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func (c *scriptedCursor) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func factoryFor(c *scriptedCursor) CursorFactory[int] {
	return func() (AsyncBatchCursor[int], error) {
		return c, nil
	}
}
