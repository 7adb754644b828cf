package rx

import (
	"sync"

	"github.com/datazip-inc/rxmongo/utils/logger"
)

// AsyncBatchCursor is the fetch capability behind a CursorPublisher: a
// server-side iterator returning results in variably-sized batches.
//
// FetchNext invokes its callback exactly once, possibly on an arbitrary
// goroutine, with the next batch (zero or more items), whether more batches
// remain, or an error. The engine never issues a FetchNext while another is
// outstanding and never after Close.
//
// Close releases the underlying resources. It is called exactly once per
// stream, never while a fetch is in flight, and must not block the caller;
// implementations should release remote resources asynchronously.
type AsyncBatchCursor[T any] interface {
	FetchNext(callback func(batch []T, hasMore bool, err error))
	Close()
}

// CursorFactory opens a fresh cursor. It is invoked once per subscription so
// that every subscriber re-runs the underlying query from scratch.
type CursorFactory[T any] func() (AsyncBatchCursor[T], error)

// CursorPublisher flattens an asynchronous batch cursor into a stream of
// single items. Batch boundaries are invisible to the subscriber: items are
// delivered in batch order, one at a time, never exceeding outstanding
// demand. A batch larger than current demand is buffered and drained by later
// Request calls without re-fetching.
type CursorPublisher[T any] struct {
	newCursor CursorFactory[T]
}

func NewCursorPublisher[T any](factory CursorFactory[T]) *CursorPublisher[T] {
	return &CursorPublisher[T]{newCursor: factory}
}

func (p *CursorPublisher[T]) Subscribe(sub Subscriber[T]) {
	if sub == nil {
		logger.Warn("ignoring Subscribe with nil subscriber")
		return
	}
	cursor, err := p.newCursor()
	if err != nil {
		sub.OnSubscribe(inertSubscription{})
		sub.OnError(err)
		return
	}
	sub.OnSubscribe(&cursorSubscription[T]{sub: sub, cursor: cursor})
}

type streamState int

const (
	stateIdle streamState = iota
	stateFetchInFlight
	stateDraining
	stateCompleted
	stateFailed
	stateCancelled
)

func (s streamState) terminal() bool {
	return s == stateCompleted || s == stateFailed || s == stateCancelled
}

// cursorSubscription is the drain loop for one subscription. All state
// transitions happen under mu; subscriber signals are delivered with mu
// released, serialized by the draining guard: only the goroutine holding the
// guard emits items, so racing Request calls and fetch callbacks merely
// update state and let the active drain pick the changes up.
type cursorSubscription[T any] struct {
	sub    Subscriber[T]
	cursor AsyncBatchCursor[T]

	mu         sync.Mutex
	demand     demand
	buffer     []T
	state      streamState
	draining   bool
	exhausted  bool
	closed     bool
	pendingErr error
}

func (s *cursorSubscription[T]) Request(n int64) {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	if err := s.demand.request(n); err != nil {
		s.failLocked(err)
		return
	}
	s.mu.Unlock()

	s.drain()
}

func (s *cursorSubscription[T]) Cancel() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	inFlight := s.state == stateFetchInFlight
	s.state = stateCancelled
	if !inFlight {
		// with a fetch in flight the cursor is released once it
		// settles, never mid-operation
		s.closeCursorLocked()
	}
	s.mu.Unlock()
}

// failLocked transitions to Failed and routes the error signal. Called with
// mu held; releases it.
func (s *cursorSubscription[T]) failLocked(err error) {
	inFlight := s.state == stateFetchInFlight
	s.state = stateFailed
	if s.draining {
		// an emission is in progress on another goroutine; it delivers
		// the error once it observes the state change
		s.pendingErr = err
		s.mu.Unlock()
		return
	}
	if !inFlight {
		s.closeCursorLocked()
	}
	s.mu.Unlock()
	s.sub.OnError(err)
}

// settle receives the result of an in-flight fetch.
func (s *cursorSubscription[T]) settle(batch []T, hasMore bool, err error) {
	s.mu.Lock()
	if s.state.terminal() {
		// cancelled (or failed) while the fetch was in flight: discard
		// the late result and release the deferred cursor
		s.closeCursorLocked()
		s.mu.Unlock()
		return
	}
	if err != nil {
		// the failing fetch is the one settling, so nothing will come
		// back later to perform a deferred close
		s.state = stateIdle
		s.failLocked(err)
		return
	}
	s.state = stateIdle
	s.buffer = append(s.buffer, batch...)
	if !hasMore {
		s.exhausted = true
	}
	s.mu.Unlock()

	s.drain()
}

// drain pumps buffered items to the subscriber while demand allows, issues
// the next fetch when the buffer runs dry, and finalizes on exhaustion. At
// most one goroutine drains at a time.
func (s *cursorSubscription[T]) drain() {
	s.mu.Lock()
	if s.draining || s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for {
		switch {
		case len(s.buffer) > 0 && s.demand.value() > 0:
			item := s.buffer[0]
			s.buffer = s.buffer[1:]
			s.demand.take(1)
			s.state = stateDraining
			s.mu.Unlock()

			s.sub.OnNext(item)

			s.mu.Lock()
			if s.state.terminal() {
				// cancelled or failed from under the emission
				err := s.pendingErr
				s.pendingErr = nil
				s.draining = false
				if err != nil {
					s.closeCursorLocked()
					s.mu.Unlock()
					s.sub.OnError(err)
					return
				}
				s.mu.Unlock()
				return
			}

		case len(s.buffer) == 0 && s.exhausted:
			s.state = stateCompleted
			s.draining = false
			s.closeCursorLocked()
			s.mu.Unlock()
			s.sub.OnComplete()
			return

		case len(s.buffer) == 0 && s.demand.value() > 0 && s.state != stateFetchInFlight:
			s.state = stateFetchInFlight
			s.draining = false
			s.mu.Unlock()
			s.cursor.FetchNext(s.settle)
			return

		default:
			// demand exhausted, or a fetch is already outstanding;
			// wait for the next Request or the fetch to settle
			if s.state != stateFetchInFlight {
				s.state = stateIdle
			}
			s.draining = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *cursorSubscription[T]) closeCursorLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.cursor.Close()
}
