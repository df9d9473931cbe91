package streams

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is a Subscriber that records every signal it receives. On
// subscribe it requests autoDemand elements (none when autoDemand is 0);
// tests drive any further demand through rec.sub.
type recorder[T any] struct {
	mu         sync.Mutex
	items      []T
	completed  bool
	err        error
	sub        Subscription
	autoDemand int64
}

func newRecorder[T any](autoDemand int64) *recorder[T] {
	return &recorder[T]{autoDemand: autoDemand}
}

func (r *recorder[T]) OnSubscribe(sub Subscription) {
	r.sub = sub
	if r.autoDemand > 0 {
		sub.Request(r.autoDemand)
	}
}

func (r *recorder[T]) OnNext(item T) {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()
}

func (r *recorder[T]) OnComplete() {
	r.mu.Lock()
	r.completed = true
	r.mu.Unlock()
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func TestFromSliceRespectsDemand(t *testing.T) {
	pub := FromSlice([]int{1, 2, 3, 4, 5})
	rec := newRecorder[int](0)
	pub.Subscribe(rec)

	require.Empty(t, rec.items)
	rec.sub.Request(2)
	require.Equal(t, []int{1, 2}, rec.items)
	require.False(t, rec.completed)

	rec.sub.Request(3)
	require.Equal(t, []int{1, 2, 3, 4, 5}, rec.items)
	require.True(t, rec.completed)
}

func TestAtMostOneTerminalSignal(t *testing.T) {
	pub := FromSlice([]int{1})
	rec := newRecorder[int](10)
	pub.Subscribe(rec)
	require.True(t, rec.completed)

	// A second request after completion must not panic or re-deliver.
	rec.sub.Request(10)
	require.Equal(t, []int{1}, rec.items)
}

func TestCancelIsIdempotent(t *testing.T) {
	pub := FromSlice([]int{1, 2, 3})
	rec := newRecorder[int](0)
	pub.Subscribe(rec)
	rec.sub.Cancel()
	rec.sub.Cancel() // must not panic
	rec.sub.Request(10)
	require.Empty(t, rec.items)
}

func TestFailedPublisher(t *testing.T) {
	boom := errors.New("boom")
	pub := Failed[int](boom)
	rec := newRecorder[int](1)
	pub.Subscribe(rec)
	require.Equal(t, boom, rec.err)
	require.False(t, rec.completed)
}
