package rx

import (
	"sync"

	"github.com/datazip-inc/rxmongo/utils/logger"
)

// AsyncOperation runs one asynchronous operation. The callback is invoked
// exactly once, possibly on an arbitrary goroutine, with either a value
// (ok=true), a bare success carrying no payload (ok=false, err=nil), or an
// error.
type AsyncOperation[T any] func(callback func(value T, ok bool, err error))

// SingleResultPublisher adapts one callback-based asynchronous operation into
// a publisher that emits at most one item and then terminates. The operation
// is lazy: it only runs once the subscriber signals demand, and runs at most
// once per subscription.
type SingleResultPublisher[T any] struct {
	op AsyncOperation[T]
}

func NewSingleResultPublisher[T any](op AsyncOperation[T]) *SingleResultPublisher[T] {
	return &SingleResultPublisher[T]{op: op}
}

func (p *SingleResultPublisher[T]) Subscribe(sub Subscriber[T]) {
	if sub == nil {
		logger.Warn("ignoring Subscribe with nil subscriber")
		return
	}
	sub.OnSubscribe(&singleSubscription[T]{op: p.op, sub: sub})
}

// singleSubscription is the live coupling for one SingleResultPublisher
// subscription. State transitions happen under mu; signals are delivered
// outside it, guarded by the terminal flag so the subscriber never observes
// two signals concurrently or anything after cancellation.
type singleSubscription[T any] struct {
	op  AsyncOperation[T]
	sub Subscriber[T]

	mu        sync.Mutex
	demand    demand
	started   bool
	cancelled bool
	terminal  bool
}

func (s *singleSubscription[T]) Request(n int64) {
	s.mu.Lock()
	if s.terminal || s.cancelled {
		s.mu.Unlock()
		return
	}
	if err := s.demand.request(n); err != nil {
		s.terminal = true
		s.mu.Unlock()
		s.sub.OnError(err)
		return
	}
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.op(s.settle)
}

func (s *singleSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// settle receives the operation's one-shot result. A result arriving after
// cancellation or a terminal signal is discarded silently.
func (s *singleSubscription[T]) settle(value T, ok bool, err error) {
	s.mu.Lock()
	if s.terminal || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	s.demand.take(1)
	s.mu.Unlock()

	if err != nil {
		s.sub.OnError(err)
		return
	}
	if ok {
		s.sub.OnNext(value)
	}
	s.sub.OnComplete()
}
