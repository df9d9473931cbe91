// Package generators provides the streams::generators::stateful equivalent:
// a Publisher backed by an explicit pump function invoked once per unit of
// demand, rather than a pre-built slice of elements. The bot instance's
// shutdown protocol is the canonical user of this — it lazily drains a
// message buffer that only exists once the upstream control callback has
// been invoked.
package generators

import "github.com/rtmbot/videobot/internal/streams"

// Stateful returns a Publisher whose state is created by init the first
// time demand arrives, and whose elements are produced by pump. pump may
// call sink.OnNext any number of times per invocation, then either return
// (to wait for more demand) or call sink.OnComplete to end the stream.
func Stateful[S, T any](init func() S, pump func(state S, sink streams.Sink[T])) streams.Publisher[T] {
	return streams.PublisherFunc[T](func(sub streams.Subscriber[T]) {
		g := &generator[S, T]{init: init, pump: pump, sub: sub}
		sub.OnSubscribe(g)
	})
}

type generator[S, T any] struct {
	init      func() S
	pump      func(state S, sink streams.Sink[T])
	sub       streams.Subscriber[T]
	state     S
	started   bool
	draining  bool
	demand    int64
	cancelled bool
	completed bool
}

// sink adapts the generator into the narrow streams.Sink surface pump sees.
type sink[S, T any] struct {
	g *generator[S, T]
}

func (s sink[S, T]) OnNext(item T) {
	g := s.g
	if g.cancelled || g.completed {
		return
	}
	g.demand--
	g.sub.OnNext(item)
}

func (s sink[S, T]) OnComplete() {
	g := s.g
	if g.completed {
		return
	}
	g.completed = true
	g.sub.OnComplete()
}

func (g *generator[S, T]) Request(n int64) {
	if n <= 0 || g.cancelled || g.completed {
		return
	}
	if !g.started {
		g.started = true
		g.state = g.init()
	}
	g.demand += n
	if g.draining {
		return
	}
	g.draining = true
	defer func() { g.draining = false }()
	for g.demand > 0 && !g.cancelled && !g.completed {
		before := g.demand
		g.pump(g.state, sink[S, T]{g: g})
		if g.demand == before {
			// pump declined to emit or complete for this round; stop
			// looping to avoid spinning and wait for the next Request.
			break
		}
	}
}

func (g *generator[S, T]) Cancel() {
	g.cancelled = true
}
