package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAnswerDirectJSON(t *testing.T) {
	raw := `{"answer": "The sky is blue.", "confidence": 0.9}`
	resp, err := ParseAnswer(raw, "alpha", false)
	require.NoError(t, err)
	require.Equal(t, "alpha", resp.ModelName)
	require.Equal(t, "The sky is blue.", resp.Answer)
	require.NotNil(t, resp.Confidence)
	require.InDelta(t, 0.9, *resp.Confidence, 1e-9)
	require.Equal(t, raw, resp.Raw)
}

func TestParseAnswerFencedBlock(t *testing.T) {
	raw := "Here is my answer:\n```json\n{\"answer\": \"42\"}\n```\nHope that helps."
	resp, err := ParseAnswer(raw, "beta", false)
	require.NoError(t, err)
	require.Equal(t, "42", resp.Answer)
}

func TestParseAnswerBareFence(t *testing.T) {
	raw := "```\n{\"answer\": \"plain fence\"}\n```"
	resp, err := ParseAnswer(raw, "beta", false)
	require.NoError(t, err)
	require.Equal(t, "plain fence", resp.Answer)
}

func TestParseAnswerBraceSpanRecovery(t *testing.T) {
	raw := `Sure! {"answer": "embedded {braces} in \"strings\" are fine"} trailing text`
	resp, err := ParseAnswer(raw, "gamma", false)
	require.NoError(t, err)
	require.Equal(t, `embedded {braces} in "strings" are fine`, resp.Answer)
}

func TestParseAnswerStructuredValueStringified(t *testing.T) {
	raw := `{"answer": {"steps": [1, 2]}}`
	resp, err := ParseAnswer(raw, "alpha", false)
	require.NoError(t, err)
	require.JSONEq(t, `{"steps":[1,2]}`, resp.Answer)
}

func TestParseAnswerStrictModeSkipsRecovery(t *testing.T) {
	raw := "prose before\n```json\n{\"answer\": \"x\"}\n```"
	_, err := ParseAnswer(raw, "alpha", true)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	// Same input succeeds without strict mode.
	_, err = ParseAnswer(raw, "alpha", false)
	require.NoError(t, err)
}

func TestParseAnswerMissingField(t *testing.T) {
	_, err := ParseAnswer(`{"confidence": 0.5}`, "alpha", false)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Contains(t, pe.Reason, "answer")
}

func TestParseAnswerUnrecoverable(t *testing.T) {
	_, err := ParseAnswer("no json here at all", "alpha", false)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseCritique(t *testing.T) {
	raw := `{
		"approve": false,
		"critical": true,
		"objections": ["wrong constant"],
		"missing": ["error handling"],
		"edits": ["fix section 2"],
		"confidence": 0.7
	}`
	resp, err := ParseCritique(raw, "beta", false)
	require.NoError(t, err)
	require.NotNil(t, resp.Approve)
	require.False(t, *resp.Approve)
	require.NotNil(t, resp.Critical)
	require.True(t, *resp.Critical)
	require.Equal(t, []string{"wrong constant"}, resp.Objections)
	require.Equal(t, []string{"error handling"}, resp.Missing)
	require.Equal(t, []string{"fix section 2"}, resp.Edits)
}

func TestParseCritiqueRequiresBooleans(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing approve", `{"critical": false}`},
		{"approve wrong type", `{"approve": "yes", "critical": false}`},
		{"missing critical", `{"approve": true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCritique(tc.raw, "beta", false)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestParseCritiqueFiltersNonStringListItems(t *testing.T) {
	raw := `{"approve": true, "critical": false, "objections": ["real", 7, null]}`
	resp, err := ParseCritique(raw, "beta", false)
	require.NoError(t, err)
	require.Equal(t, []string{"real"}, resp.Objections)
}

func TestParseSynthesis(t *testing.T) {
	raw := `{
		"candidate_answer": "synthesized",
		"rationale": "merged all inputs",
		"common_points": ["a"],
		"objections": [],
		"missing": ["b"],
		"suggested_edits": ["c"]
	}`
	syn, err := ParseSynthesis(raw, false)
	require.NoError(t, err)
	require.Equal(t, "synthesized", syn.CandidateAnswer)
	require.Equal(t, "merged all inputs", syn.Rationale)
	require.Equal(t, []string{"a"}, syn.CommonPoints)
	require.Nil(t, syn.Objections)
	require.Equal(t, []string{"b"}, syn.Missing)
}

func TestParseSynthesisRequiresCandidateAndRationale(t *testing.T) {
	_, err := ParseSynthesis(`{"rationale": "r"}`, false)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	_, err = ParseSynthesis(`{"candidate_answer": "c"}`, false)
	require.ErrorAs(t, err, &pe)
}

func TestParseUpdate(t *testing.T) {
	upd, err := ParseUpdate(`{"candidate_answer": "v2", "rationale": "addressed objections"}`, false)
	require.NoError(t, err)
	require.Equal(t, "v2", upd.CandidateAnswer)
	require.Equal(t, "addressed objections", upd.Rationale)
}

func TestFirstObjectSpanIgnoresBracesInStrings(t *testing.T) {
	span := firstObjectSpan(`text {"k": "a } b"} tail`)
	require.Equal(t, `{"k": "a } b"}`, span)
}

func TestFirstObjectSpanUnbalanced(t *testing.T) {
	require.Empty(t, firstObjectSpan(`{"k": "never closed`))
}
