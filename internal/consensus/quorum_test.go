package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

func TestOutcomeProceedAtQuorum(t *testing.T) {
	c := Collection{
		Responses: []Response{{ModelName: "alpha"}, {ModelName: "beta"}},
		Failed:    []FailedModel{{ModelName: "gamma", Kind: llm.KindTimeout}},
	}
	require.Equal(t, OutcomeProceed, c.Outcome(2))
	require.NoError(t, CheckRound(c, 3, 2, 1))
}

func TestOutcomeZeroResponses(t *testing.T) {
	c := Collection{
		Failed: []FailedModel{
			{ModelName: "alpha", Kind: llm.KindNetwork},
			{ModelName: "beta", Kind: llm.KindTimeout},
		},
	}
	require.Equal(t, OutcomeZeroResponses, c.Outcome(2))

	err := CheckRound(c, 2, 2, 1)
	var zre *ZeroResponseError
	require.ErrorAs(t, err, &zre)
	require.Equal(t, 1, zre.Round)
	require.Len(t, zre.Failed, 2)
}

func TestOutcomeBelowQuorum(t *testing.T) {
	c := Collection{
		Responses: []Response{{ModelName: "alpha"}},
		Failed: []FailedModel{
			{ModelName: "beta", Kind: llm.KindRateLimit},
			{ModelName: "gamma", Kind: llm.KindUnavailable},
		},
	}
	require.Equal(t, OutcomeBelowQuorum, c.Outcome(2))

	err := CheckRound(c, 3, 2, 2)
	var qe *QuorumError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, 2, qe.Round)
	require.Equal(t, 1, qe.Received)
	require.Equal(t, 2, qe.Required)
	require.Contains(t, qe.Error(), "got 1, need 2")
}

func TestQuorumEvaluatedPerRound(t *testing.T) {
	// A shortfall in one round does not change what the next one needs.
	short := Collection{Responses: []Response{{ModelName: "alpha"}}}
	full := Collection{Responses: []Response{
		{ModelName: "alpha"}, {ModelName: "beta"}, {ModelName: "gamma"},
	}}
	require.Error(t, CheckRound(short, 3, 2, 1))
	require.NoError(t, CheckRound(full, 3, 2, 2))
}
