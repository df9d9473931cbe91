package generators

import (
	"testing"

	"github.com/rtmbot/videobot/internal/streams"
	"github.com/stretchr/testify/require"
)

type recorder[T any] struct {
	items     []T
	completed bool
	sub       streams.Subscription
}

func (r *recorder[T]) OnSubscribe(sub streams.Subscription) { r.sub = sub }
func (r *recorder[T]) OnNext(item T)                         { r.items = append(r.items, item) }
func (r *recorder[T]) OnComplete()                           { r.completed = true }
func (r *recorder[T]) OnError(err error)                     { _ = err }

func TestStatefulDefersInitUntilFirstDemand(t *testing.T) {
	initCalls := 0
	pub := Stateful(func() []int {
		initCalls++
		return []int{1, 2, 3}
	}, func(state []int, sink streams.Sink[int]) {
		if len(state) == 0 {
			sink.OnComplete()
			return
		}
		sink.OnNext(state[0])
		copy(state, state[1:])
	})

	rec := &recorder[int]{}
	pub.Subscribe(rec)
	require.Equal(t, 0, initCalls)

	rec.sub.Request(1)
	require.Equal(t, 1, initCalls)
}

func TestStatefulPumpsUntilDemandExhausted(t *testing.T) {
	remaining := []int{10, 20, 30, 40}
	pub := Stateful(func() *[]int {
		return &remaining
	}, func(state *[]int, sink streams.Sink[int]) {
		if len(*state) == 0 {
			sink.OnComplete()
			return
		}
		sink.OnNext((*state)[0])
		*state = (*state)[1:]
	})

	rec := &recorder[int]{}
	pub.Subscribe(rec)

	rec.sub.Request(3)
	require.Equal(t, []int{10, 20, 30}, rec.items)
	require.False(t, rec.completed)

	rec.sub.Request(5)
	require.Equal(t, []int{10, 20, 30, 40}, rec.items)
	require.True(t, rec.completed)
}

func TestStatefulStopsLoopingWhenPumpDeclines(t *testing.T) {
	// pump emits nothing and doesn't complete: Request must return rather
	// than spin forever, leaving demand outstanding for a later producer.
	pumpCalls := 0
	pub := Stateful(func() int {
		return 0
	}, func(state int, sink streams.Sink[int]) {
		pumpCalls++
	})

	rec := &recorder[int]{}
	pub.Subscribe(rec)
	rec.sub.Request(5)

	require.Equal(t, 1, pumpCalls)
	require.Empty(t, rec.items)
	require.False(t, rec.completed)
}

func TestStatefulCancelStopsFurtherDelivery(t *testing.T) {
	remaining := []int{1, 2, 3}
	pub := Stateful(func() *[]int {
		return &remaining
	}, func(state *[]int, sink streams.Sink[int]) {
		if len(*state) == 0 {
			sink.OnComplete()
			return
		}
		sink.OnNext((*state)[0])
		*state = (*state)[1:]
	})

	rec := &recorder[int]{}
	pub.Subscribe(rec)
	rec.sub.Request(1)
	require.Equal(t, []int{1}, rec.items)

	rec.sub.Cancel()
	rec.sub.Request(10)
	require.Equal(t, []int{1}, rec.items)
	require.False(t, rec.completed)
}
