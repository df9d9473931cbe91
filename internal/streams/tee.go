package streams

import "sync"

// Tee subscribes to pub once and fans its elements out to a primary
// Publisher, which drives upstream demand one-for-one on pub's behalf,
// and n best-effort secondary Publishers: an element reaches a secondary
// subscriber only if it has already signaled outstanding demand,
// otherwise it is silently dropped for that subscriber. This mirrors a
// broadcaster dropping a slow subscriber's update rather than letting it
// throttle everyone else — appropriate for a secondary consumer like a
// live-preview track that should never slow down the primary pipeline.
func Tee[T any](pub Publisher[T], n int) (primary Publisher[T], secondaries []Publisher[T]) {
	h := &teeHub[T]{secondaries: make([]*teeSecondary[T], n)}

	primary = PublisherFunc[T](func(sub Subscriber[T]) {
		h.mu.Lock()
		h.primary = sub
		h.mu.Unlock()
		pub.Subscribe(h)
	})

	secondaries = make([]Publisher[T], n)
	for i := range secondaries {
		idx := i
		secondaries[idx] = PublisherFunc[T](func(sub Subscriber[T]) {
			h.mu.Lock()
			h.secondaries[idx] = &teeSecondary[T]{sub: sub}
			h.mu.Unlock()
			sub.OnSubscribe(&teeSecondarySubscription[T]{h: h, idx: idx})
		})
	}
	return primary, secondaries
}

type teeSecondary[T any] struct {
	sub       Subscriber[T]
	demand    int64
	cancelled bool
}

type teeHub[T any] struct {
	mu          sync.Mutex
	upstream    Subscription
	primary     Subscriber[T]
	secondaries []*teeSecondary[T]
}

func (h *teeHub[T]) liveSecondaries() []*teeSecondary[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*teeSecondary[T], len(h.secondaries))
	copy(out, h.secondaries)
	return out
}

func (h *teeHub[T]) OnSubscribe(sub Subscription) {
	h.mu.Lock()
	h.upstream = sub
	h.mu.Unlock()
	h.primary.OnSubscribe(&teePrimarySubscription[T]{h: h})
}

func (h *teeHub[T]) OnNext(item T) {
	h.primary.OnNext(item)
	for _, s := range h.liveSecondaries() {
		if s == nil || s.cancelled {
			continue
		}
		h.mu.Lock()
		deliver := s.demand > 0
		if deliver {
			s.demand--
		}
		h.mu.Unlock()
		if deliver {
			s.sub.OnNext(item)
		}
	}
}

func (h *teeHub[T]) OnComplete() {
	h.primary.OnComplete()
	for _, s := range h.liveSecondaries() {
		if s != nil && !s.cancelled {
			s.sub.OnComplete()
		}
	}
}

func (h *teeHub[T]) OnError(err error) {
	h.primary.OnError(err)
	for _, s := range h.liveSecondaries() {
		if s != nil && !s.cancelled {
			s.sub.OnError(err)
		}
	}
}

type teePrimarySubscription[T any] struct{ h *teeHub[T] }

func (s *teePrimarySubscription[T]) Request(n int64) { s.h.upstream.Request(n) }
func (s *teePrimarySubscription[T]) Cancel()         { s.h.upstream.Cancel() }

type teeSecondarySubscription[T any] struct {
	h   *teeHub[T]
	idx int
}

func (s *teeSecondarySubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if out := s.h.secondaries[s.idx]; out != nil {
		out.demand += n
	}
}

func (s *teeSecondarySubscription[T]) Cancel() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if out := s.h.secondaries[s.idx]; out != nil {
		out.cancelled = true
	}
}
