package streams

// Concat subscribes to a; once a completes, it subscribes to b and
// continues delivering from there. Any outstanding demand a didn't manage
// to fulfill before completing is carried over and immediately requested
// from b. Errors from either publisher propagate immediately.
func Concat[T any](a, b Publisher[T]) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		c := &concatState[T]{downstream: downstream, next: b}
		a.Subscribe(&concatSubscriber[T]{state: c})
	})
}

type concatState[T any] struct {
	downstream  Subscriber[T]
	next        Publisher[T]
	activeSub   Subscription
	outstanding int64
	cancelled   bool
	onSecond    bool
}

type concatSubscription[T any] struct {
	state *concatState[T]
}

func (s *concatSubscription[T]) Request(n int64) {
	c := s.state
	if n <= 0 || c.cancelled {
		return
	}
	c.outstanding += n
	if c.activeSub != nil {
		c.activeSub.Request(n)
	}
}

func (s *concatSubscription[T]) Cancel() {
	c := s.state
	if c.cancelled {
		return
	}
	c.cancelled = true
	if c.activeSub != nil {
		c.activeSub.Cancel()
	}
}

type concatSubscriber[T any] struct {
	state *concatState[T]
}

func (s *concatSubscriber[T]) OnSubscribe(sub Subscription) {
	c := s.state
	c.activeSub = sub
	if !c.onSecond {
		c.downstream.OnSubscribe(&concatSubscription[T]{state: c})
	} else if c.outstanding > 0 {
		sub.Request(c.outstanding)
	}
}

func (s *concatSubscriber[T]) OnNext(item T) {
	c := s.state
	c.outstanding--
	c.downstream.OnNext(item)
}

func (s *concatSubscriber[T]) OnComplete() {
	c := s.state
	if c.cancelled {
		return
	}
	if c.onSecond || c.next == nil {
		c.downstream.OnComplete()
		return
	}
	c.onSecond = true
	second := c.next
	c.next = nil
	c.activeSub = nil
	second.Subscribe(&concatSubscriber[T]{state: c})
}

func (s *concatSubscriber[T]) OnError(err error) {
	s.state.downstream.OnError(err)
}
