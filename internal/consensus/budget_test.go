package consensus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("a"))
	require.Equal(t, 1, EstimateTokens("abcd"))
	require.Equal(t, 2, EstimateTokens("abcde"))
	require.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestResponseTokensIncludesListsAndDigest(t *testing.T) {
	responses := []Response{
		{Answer: strings.Repeat("a", 40), Objections: []string{strings.Repeat("b", 20)}},
	}
	digest := Digest{Missing: []string{strings.Repeat("c", 12)}}
	got := ResponseTokens(responses, &digest)
	// 10 answer tokens, 5 objection tokens, plus the formatted digest.
	require.Greater(t, got, 15)
}

func TestTrackDropsOldestRoundsFirst(t *testing.T) {
	b := NewContextBudget(100)
	require.Empty(t, b.Track(1, 40))
	require.Empty(t, b.Track(2, 40))

	dropped := b.Track(3, 50)
	require.Equal(t, []int{1}, dropped)
	require.Equal(t, []int{2, 3}, b.Retained())
	require.Equal(t, 90, b.Used())
	require.Equal(t, 1, b.Truncated())
}

func TestTrackNeverDropsNewestRound(t *testing.T) {
	b := NewContextBudget(50)
	b.Track(1, 30)
	dropped := b.Track(2, 500)
	// Even an oversized newest round is admitted; only older rounds go.
	require.Equal(t, []int{1}, dropped)
	require.Equal(t, []int{2}, b.Retained())
}

func TestWouldExceed(t *testing.T) {
	b := NewContextBudget(100)
	b.Track(1, 60)
	require.False(t, b.WouldExceed(40))
	require.True(t, b.WouldExceed(41))
}

func TestZeroBudgetDisablesTracking(t *testing.T) {
	b := NewContextBudget(0)
	require.Empty(t, b.Track(1, 1<<20))
	require.False(t, b.WouldExceed(1<<30))
	require.Equal(t, []int{1}, b.Retained())
}
