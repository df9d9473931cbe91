package streams

import (
	"os"
	"os/signal"
	"sync"
)

// SignalBreaker installs handlers for the given process signals. On the
// first signal received, it cancels the upstream subscription and
// completes the downstream subscriber. Demand/elements pass through
// unchanged otherwise.
func SignalBreaker[T any](pub Publisher[T], signals ...os.Signal) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		b := &breaker[T]{downstream: downstream}
		pub.Subscribe(&breakerSubscriber[T]{b: b})
		b.ch = make(chan os.Signal, 1)
		signal.Notify(b.ch, signals...)
		go b.watch()
	})
}

type breaker[T any] struct {
	downstream Subscriber[T]
	upstream   Subscription
	ch         chan os.Signal
	mu         sync.Mutex
	tripped    bool
}

func (b *breaker[T]) watch() {
	if _, ok := <-b.ch; !ok {
		return
	}
	b.trip()
}

func (b *breaker[T]) trip() {
	b.mu.Lock()
	if b.tripped {
		b.mu.Unlock()
		return
	}
	b.tripped = true
	b.mu.Unlock()

	signal.Stop(b.ch)
	if b.upstream != nil {
		b.upstream.Cancel()
	}
	b.downstream.OnComplete()
}

func (b *breaker[T]) isTripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

type breakerSubscriber[T any] struct {
	b *breaker[T]
}

func (s *breakerSubscriber[T]) OnSubscribe(sub Subscription) {
	s.b.upstream = sub
	s.b.downstream.OnSubscribe(&breakerSubscription[T]{b: s.b})
}

func (s *breakerSubscriber[T]) OnNext(item T) {
	if s.b.isTripped() {
		return
	}
	s.b.downstream.OnNext(item)
}

func (s *breakerSubscriber[T]) OnComplete() {
	if s.b.isTripped() {
		return
	}
	signal.Stop(s.b.ch)
	s.b.downstream.OnComplete()
}

func (s *breakerSubscriber[T]) OnError(err error) {
	if s.b.isTripped() {
		return
	}
	signal.Stop(s.b.ch)
	s.b.downstream.OnError(err)
}

type breakerSubscription[T any] struct {
	b *breaker[T]
}

func (s *breakerSubscription[T]) Request(n int64) {
	if s.b.isTripped() {
		return
	}
	s.b.upstream.Request(n)
}

func (s *breakerSubscription[T]) Cancel() {
	s.b.trip()
}
