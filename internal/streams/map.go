package streams

// Map returns a Publisher that applies f to each element of pub.
// Completion and error signals propagate unchanged. f may itself return a
// Publisher — combined with Flatten that turns the output into a
// concat-flattened stream of the inner publishers' elements.
func Map[T, R any](pub Publisher[T], f func(T) R) Publisher[R] {
	return PublisherFunc[R](func(downstream Subscriber[R]) {
		pub.Subscribe(&mapSubscriber[T, R]{downstream: downstream, f: f})
	})
}

type mapSubscriber[T, R any] struct {
	downstream Subscriber[R]
	f          func(T) R
}

func (m *mapSubscriber[T, R]) OnSubscribe(sub Subscription) {
	m.downstream.OnSubscribe(passthroughSubscription{upstream: sub})
}

func (m *mapSubscriber[T, R]) OnNext(item T) {
	m.downstream.OnNext(m.f(item))
}

func (m *mapSubscriber[T, R]) OnComplete() { m.downstream.OnComplete() }
func (m *mapSubscriber[T, R]) OnError(err error) { m.downstream.OnError(err) }

// Filter returns a Publisher emitting only elements for which keep returns
// true. This withholds the filtered-out element without consuming
// downstream demand for it — upstream demand is re-requested by one to
// compensate, so the demand invariant (subscriber never receives more than
// it asked for) still holds for the elements that do pass through.
func Filter[T any](pub Publisher[T], keep func(T) bool) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		pub.Subscribe(&filterSubscriber[T]{downstream: downstream, keep: keep})
	})
}

type filterSubscriber[T any] struct {
	downstream Subscriber[T]
	keep       func(T) bool
	upstream   Subscription
}

func (f *filterSubscriber[T]) OnSubscribe(sub Subscription) {
	f.upstream = sub
	f.downstream.OnSubscribe(passthroughSubscription{upstream: sub})
}

func (f *filterSubscriber[T]) OnNext(item T) {
	if f.keep(item) {
		f.downstream.OnNext(item)
		return
	}
	f.upstream.Request(1)
}

func (f *filterSubscriber[T]) OnComplete()      { f.downstream.OnComplete() }
func (f *filterSubscriber[T]) OnError(err error) { f.downstream.OnError(err) }
