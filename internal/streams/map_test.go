package streams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapAppliesFunctionAndPropagatesCompletion(t *testing.T) {
	pub := Map(FromSlice([]int{1, 2, 3}), func(i int) string {
		return string(rune('a' + i))
	})
	rec := newRecorder[string](10)
	pub.Subscribe(rec)
	require.Equal(t, []string{"b", "c", "d"}, rec.items)
	require.True(t, rec.completed)
}

func TestFilterWithholdsElementsWithoutExceedingDemand(t *testing.T) {
	pub := Filter(FromSlice([]int{1, 2, 3, 4, 5, 6}), func(i int) bool { return i%2 == 0 })
	rec := newRecorder[int](0)
	pub.Subscribe(rec)

	rec.sub.Request(2)
	require.Equal(t, []int{2, 4}, rec.items)

	rec.sub.Request(1)
	require.Equal(t, []int{2, 4, 6}, rec.items)
	require.True(t, rec.completed)
}
