package streams

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalBreakerCompletesDownstreamOnSignal(t *testing.T) {
	// A three-element slice publisher does not complete on its own at this
	// demand level; the breaker is the only thing that terminates it.
	pub := SignalBreaker[int](FromSlice([]int{1, 2, 3}), syscall.SIGUSR1)
	rec := newRecorder[int](0)
	pub.Subscribe(rec)

	rec.sub.Request(1)
	require.Equal(t, []int{1}, rec.items)
	require.False(t, rec.completed)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.completed
	}, time.Second, time.Millisecond)

	// Demand requested after the trip must not deliver further elements.
	rec.sub.Request(10)
	require.Equal(t, []int{1}, rec.items)
}

func TestSignalBreakerCancelIsIdempotent(t *testing.T) {
	pub := SignalBreaker[int](FromSlice([]int{1, 2, 3}), syscall.SIGUSR2)
	rec := newRecorder[int](0)
	pub.Subscribe(rec)

	rec.sub.Cancel()
	rec.sub.Cancel() // must not panic or double-deliver OnComplete

	require.True(t, rec.completed)
	require.Empty(t, rec.items)
}

func TestSignalBreakerForwardsNaturalCompletion(t *testing.T) {
	pub := SignalBreaker[int](FromSlice([]int{1, 2}), syscall.SIGUSR1)
	rec := newRecorder[int](10)
	pub.Subscribe(rec)

	require.Equal(t, []int{1, 2}, rec.items)
	require.True(t, rec.completed)
}
