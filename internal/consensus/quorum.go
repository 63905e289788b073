package consensus

import "fmt"

// RoundOutcome classifies a round's collection result.
type RoundOutcome string

const (
	// OutcomeProceed: quorum met; failures, if any, are tolerated and
	// recorded.
	OutcomeProceed RoundOutcome = "proceed"
	// OutcomeZeroResponses: every participant failed.
	OutcomeZeroResponses RoundOutcome = "zero_responses"
	// OutcomeBelowQuorum: some succeeded but fewer than quorum.
	OutcomeBelowQuorum RoundOutcome = "below_quorum"
)

// Collection gathers per-participant outcomes for one round.
type Collection struct {
	Responses []Response
	Failed    []FailedModel
}

// Outcome evaluates the collection against the quorum. Evaluation is
// independent per round: failures in an earlier round never reduce the
// quorum required later.
func (c Collection) Outcome(quorum int) RoundOutcome {
	switch {
	case len(c.Responses) == 0:
		return OutcomeZeroResponses
	case len(c.Responses) < quorum:
		return OutcomeBelowQuorum
	default:
		return OutcomeProceed
	}
}

// CheckRound returns nil when the round may proceed, or the error matching
// the outcome: ZeroResponseError for a total outage, QuorumError for a
// partial shortfall. The two are distinct because they warrant different
// operator guidance (and different exit codes).
func CheckRound(c Collection, participants, quorum, round int) error {
	switch c.Outcome(quorum) {
	case OutcomeZeroResponses:
		return &ZeroResponseError{
			Round:   round,
			Failed:  c.Failed,
			Message: fmt.Sprintf("all models failed in round %d (0 of %d responded)", round, participants),
		}
	case OutcomeBelowQuorum:
		return &QuorumError{
			Round:    round,
			Received: len(c.Responses),
			Required: quorum,
			Failed:   c.Failed,
			Message:  fmt.Sprintf("insufficient responses in round %d: got %d, need %d", round, len(c.Responses), quorum),
		}
	default:
		return nil
	}
}
