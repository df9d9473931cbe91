package messaging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionRoundTrip(t *testing.T) {
	cases := []Position{
		{Generation: 0, Pos: 0},
		{Generation: 1, Pos: 42},
		{Generation: 4294967295, Pos: 18446744073709551615},
	}
	for _, p := range cases {
		require.Equal(t, p, ParsePosition(p.String()))
	}
}

func TestParsePositionMalformedYieldsZero(t *testing.T) {
	for _, s := range []string{"", "garbage", "1:", ":1", "1:2:3", "-1:2", "1:-2"} {
		require.Equal(t, Position{}, ParsePosition(s))
	}
}
