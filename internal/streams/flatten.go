package streams

// Flatten subscribes to the outer publisher and, for each inner publisher
// it emits, subscribes to it and forwards its elements downstream. At most
// one inner subscription is active at a time (this is a concat-flatten,
// not a merge). An inner error fails the whole stream; the outer completes
// once the last inner publisher has completed.
func Flatten[T any](outer Publisher[Publisher[T]]) Publisher[T] {
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		f := &flattenState[T]{downstream: downstream}
		outer.Subscribe(&outerSubscriber[T]{state: f})
	})
}

type flattenState[T any] struct {
	downstream    Subscriber[T]
	outerSub      Subscription
	innerSub      Subscription
	demand        int64
	outerComplete bool
	innerActive   bool
	cancelled     bool
	started       bool
}

func (f *flattenState[T]) downstreamSubscription() Subscription {
	return &flattenSubscription[T]{state: f}
}

type flattenSubscription[T any] struct {
	state *flattenState[T]
}

func (s *flattenSubscription[T]) Request(n int64) {
	f := s.state
	if n <= 0 || f.cancelled {
		return
	}
	f.demand += n
	if f.innerActive && f.innerSub != nil {
		f.innerSub.Request(n)
	}
	if !f.started {
		f.started = true
		f.outerSub.Request(1)
	}
}

func (s *flattenSubscription[T]) Cancel() {
	f := s.state
	if f.cancelled {
		return
	}
	f.cancelled = true
	if f.innerSub != nil {
		f.innerSub.Cancel()
	}
	if f.outerSub != nil {
		f.outerSub.Cancel()
	}
}

type outerSubscriber[T any] struct {
	state *flattenState[T]
}

func (o *outerSubscriber[T]) OnSubscribe(sub Subscription) {
	o.state.outerSub = sub
	o.state.downstream.OnSubscribe(o.state.downstreamSubscription())
}

func (o *outerSubscriber[T]) OnNext(inner Publisher[T]) {
	f := o.state
	if f.cancelled {
		return
	}
	f.innerActive = true
	inner.Subscribe(&innerSubscriber[T]{state: f})
}

func (o *outerSubscriber[T]) OnComplete() {
	f := o.state
	f.outerComplete = true
	if !f.innerActive {
		f.downstream.OnComplete()
	}
}

func (o *outerSubscriber[T]) OnError(err error) {
	f := o.state
	if f.innerSub != nil {
		f.innerSub.Cancel()
	}
	f.downstream.OnError(err)
}

type innerSubscriber[T any] struct {
	state *flattenState[T]
}

func (i *innerSubscriber[T]) OnSubscribe(sub Subscription) {
	f := i.state
	f.innerSub = sub
	if f.cancelled {
		sub.Cancel()
		return
	}
	if f.demand > 0 {
		sub.Request(f.demand)
	}
}

func (i *innerSubscriber[T]) OnNext(item T) {
	f := i.state
	if f.cancelled {
		return
	}
	f.demand--
	f.downstream.OnNext(item)
}

func (i *innerSubscriber[T]) OnComplete() {
	f := i.state
	f.innerActive = false
	f.innerSub = nil
	if f.cancelled {
		return
	}
	if f.outerComplete {
		f.downstream.OnComplete()
		return
	}
	f.outerSub.Request(1)
}

func (i *innerSubscriber[T]) OnError(err error) {
	f := i.state
	f.innerActive = false
	if f.outerSub != nil {
		f.outerSub.Cancel()
	}
	f.downstream.OnError(err)
}
