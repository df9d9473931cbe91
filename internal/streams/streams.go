// Package streams implements the reactive-streams-style publisher/subscriber
// primitive the rest of the pipeline is built on: a lazy, pull-with-demand
// source that only produces elements a subscriber has asked for, and a set
// of operators (Map, Flatten, Concat, ThreadedWorker, SignalBreaker) that
// compose into a pipeline.
//
// The contract mirrors the Reactive Streams specification: a Subscriber
// receives exactly one OnSubscribe, any number of OnNext, terminated by at
// most one of OnComplete/OnError. A Subscription accepts additive Request
// calls and an idempotent Cancel. Re-subscription is not supported — each
// Publisher is consumed at most once.
package streams

// Subscription is the back-reference a Publisher hands to a Subscriber on
// subscribe. It is a weak reference in spirit: holding one must never keep
// the publisher side alive past its natural lifetime.
type Subscription interface {
	// Request adds n to the outstanding demand. n must be positive.
	Request(n int64)
	// Cancel stops the publisher from producing further elements. Calling
	// Cancel more than once has the same effect as calling it once.
	Cancel()
}

// Subscriber receives the elements of a Publisher[T].
type Subscriber[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(item T)
	OnComplete()
	OnError(err error)
}

// Sink is the narrow surface a generator's pump function needs: it can emit
// an element or declare the stream finished, but it cannot fail the stream
// (generators that can fail should communicate that through the element
// type itself, or via OnError if used directly as a Subscriber).
type Sink[T any] interface {
	OnNext(item T)
	OnComplete()
}

// Publisher produces a sequence of T to whichever Subscriber subscribes to
// it. Subscribe must be called at most once per Publisher instance.
type Publisher[T any] interface {
	Subscribe(sub Subscriber[T])
}

// PublisherFunc adapts a plain function to a Publisher.
type PublisherFunc[T any] func(sub Subscriber[T])

func (f PublisherFunc[T]) Subscribe(sub Subscriber[T]) { f(sub) }

// noopSubscription is handed out by publishers that have already completed
// synchronously (e.g. an empty source) — Request/Cancel on it are no-ops.
type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

// Empty returns a Publisher that completes immediately without emitting
// any element.
func Empty[T any]() Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(noopSubscription{})
		sub.OnComplete()
	})
}

// Failed returns a Publisher that immediately errors without emitting any
// element.
func Failed[T any](err error) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(noopSubscription{})
		sub.OnError(err)
	})
}

// FromSlice returns a Publisher that emits each element of items in order,
// one per unit of demand, then completes. It is the simplest possible
// demand-respecting source and is used throughout the test suite as a
// stand-in for a real video source.
func FromSlice[T any](items []T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &sliceSubscription[T]{items: items, sub: sub}
		sub.OnSubscribe(s)
	})
}

type sliceSubscription[T any] struct {
	items     []T
	sub       Subscriber[T]
	pos       int
	demand    int64
	cancelled bool
	completed bool
	// draining guards against re-entrant Request calls made from within
	// OnNext (a downstream that requests more as soon as it receives an
	// element) by serializing delivery onto the same call stack instead of
	// recursing.
	draining bool
}

func (s *sliceSubscription[T]) Request(n int64) {
	if n <= 0 || s.cancelled || s.completed {
		return
	}
	s.demand += n
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()
	for s.demand > 0 && s.pos < len(s.items) && !s.cancelled {
		item := s.items[s.pos]
		s.pos++
		s.demand--
		s.sub.OnNext(item)
	}
	if s.pos >= len(s.items) && !s.cancelled && !s.completed {
		s.completed = true
		s.sub.OnComplete()
	}
}

func (s *sliceSubscription[T]) Cancel() {
	s.cancelled = true
}

// passthroughSubscription forwards Request/Cancel verbatim to an upstream
// subscription. It is the building block for stateless operators (Map,
// Filter) that don't need their own demand bookkeeping.
type passthroughSubscription struct {
	upstream Subscription
}

func (p passthroughSubscription) Request(n int64) { p.upstream.Request(n) }
func (p passthroughSubscription) Cancel()          { p.upstream.Cancel() }
