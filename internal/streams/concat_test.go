package streams

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcatSwitchesAfterFirstCompletes(t *testing.T) {
	pub := Concat[int](FromSlice([]int{1, 2}), FromSlice([]int{3, 4, 5}))
	rec := newRecorder[int](100)
	pub.Subscribe(rec)
	require.Equal(t, []int{1, 2, 3, 4, 5}, rec.items)
	require.True(t, rec.completed)
}

func TestConcatCarriesOverOutstandingDemand(t *testing.T) {
	pub := Concat[int](FromSlice([]int{1}), FromSlice([]int{2, 3}))
	rec := newRecorder[int](0)
	pub.Subscribe(rec)

	// Ask for more than the first publisher can deliver; the remainder
	// must be requested from the second publisher automatically.
	rec.sub.Request(3)
	require.Equal(t, []int{1, 2, 3}, rec.items)
	require.True(t, rec.completed)
}

func TestConcatPropagatesErrorFromEitherSide(t *testing.T) {
	boom := errors.New("boom")
	pub := Concat[int](FromSlice([]int{1}), Failed[int](boom))
	rec := newRecorder[int](100)
	pub.Subscribe(rec)
	require.Equal(t, []int{1}, rec.items)
	require.Equal(t, boom, rec.err)
	require.False(t, rec.completed)
}
