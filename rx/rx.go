// Package rx implements a demand-driven streaming engine over asynchronous,
// callback-based data sources. A Publisher produces items for at most one
// Subscriber per subscription, never exceeding the demand the subscriber has
// signalled through its Subscription, and delivers exactly one terminal
// signal (completion or error) per stream.
package rx

import (
	"errors"

	"github.com/datazip-inc/rxmongo/utils/logger"
)

var (
	// ErrIllegalDemand is delivered when Request is called with a
	// non-positive amount. It is always fatal to the stream.
	ErrIllegalDemand = errors.New("requested demand must be a positive amount")
)

// Publisher is a provider of a sequence of items, published according to the
// demand received from its Subscriber. Subscribe may be called multiple
// times; each call starts an independent stream that re-runs the underlying
// operation from scratch.
type Publisher[T any] interface {
	Subscribe(Subscriber[T])
}

// Subscription represents the one-to-one lifecycle between a Subscriber and a
// Publisher. Both methods are safe to call from any goroutine, never block,
// and Cancel is idempotent.
type Subscription interface {
	// Request authorizes the publisher to deliver up to n further items.
	// n must be positive; anything else terminates the stream with
	// ErrIllegalDemand.
	Request(n int64)
	// Cancel stops the stream. No item is delivered after Cancel returns,
	// though an in-flight upstream operation may still settle remotely.
	Cancel()
}

// Subscriber receives signals from a Publisher. Signals are serialized: no
// two are ever delivered concurrently, and none is delivered after OnError
// or OnComplete.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	OnNext(T)
	OnError(error)
	OnComplete()
}

// Ack is the unit item emitted by operations whose only meaningful outcome
// is "succeeded".
type Ack struct{}

// SubscriberFuncs adapts plain functions to the Subscriber interface. Nil
// fields are skipped, except that a nil Subscribed requests unbounded demand
// so the stream runs to completion on its own.
type SubscriberFuncs[T any] struct {
	Subscribed func(Subscription)
	Next       func(T)
	Err        func(error)
	Completed  func()
}

func (s *SubscriberFuncs[T]) OnSubscribe(sub Subscription) {
	if s.Subscribed != nil {
		s.Subscribed(sub)
		return
	}
	sub.Request(Unbounded)
}

func (s *SubscriberFuncs[T]) OnNext(item T) {
	if s.Next != nil {
		s.Next(item)
	}
}

func (s *SubscriberFuncs[T]) OnError(err error) {
	if s.Err != nil {
		s.Err(err)
		return
	}
	logger.Errorf("stream failed: %s", err)
}

func (s *SubscriberFuncs[T]) OnComplete() {
	if s.Completed != nil {
		s.Completed()
	}
}

// inertSubscription is handed to subscribers whose stream failed before a
// live subscription could be established.
type inertSubscription struct{}

func (inertSubscription) Request(int64) {}
func (inertSubscription) Cancel()       {}
