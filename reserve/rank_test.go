package reserve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	together, ok := Rank(9, 4, 64, 9)
	require.True(t, ok)
	assert.Equal(t, int64(268434272), together)

	separate, ok := Rank(9, 4, 384, 9)
	require.True(t, ok)
	assert.Equal(t, int64(268423312), separate)
	assert.Greater(t, together, separate)

	_, ok = Rank(0, 4, 64, 9)
	assert.False(t, ok, "a candidate packing nothing is never ranked")
}

func TestRank_MoreRoundsNeverScoreBetter(t *testing.T) {
	for _, n := range []int{1, 2, 3, 9, 21} {
		for _, area := range []int{16, 64, 128, 384} {
			prev, ok := Rank(n, 4, area, 1)
			require.True(t, ok)
			for need := 2; need <= 200; need++ {
				score, _ := Rank(n, 4, area, need)
				require.LessOrEqual(t, score, prev, "n=%d area=%d need=%d", n, area, need)
				prev = score
			}
		}
	}
}
