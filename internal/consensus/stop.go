package consensus

import (
	"fmt"
	"strings"
)

// StopReason explains why a run terminated.
type StopReason string

const (
	StopConsensusReached  StopReason = "consensus_reached"
	StopMaxRounds         StopReason = "max_rounds_reached"
	StopLowChange         StopReason = "low_change_stop"
	StopNoChangesProposed StopReason = "no_changes_proposed"
)

// RunState tracks where a run is in its lifecycle. Transitions are
// linear with a loop over the critique phases; terminal states are
// Complete and Failed.
type RunState string

const (
	StateRound1Pending RunState = "round1_pending"
	StateSynthesizing  RunState = "synthesizing"
	StateCritiquing    RunState = "critiquing"
	StateUpdating      RunState = "updating"
	StateComplete      RunState = "complete"
	StateFailed        RunState = "failed"
)

// RoundTally summarises one critique round for stop evaluation.
type RoundTally struct {
	Round              int
	Approvals          int
	CriticalObjections int
	// ChangesProposed is false when no critique carried objections,
	// missing points, or edits.
	ChangesProposed bool
}

// StopDecision is the outcome of evaluating stop conditions after a
// critique round.
type StopDecision struct {
	Stop      bool
	Reason    StopReason
	Consensus bool
	// ChangeRatio is only meaningful when a previous candidate existed;
	// it is -1 otherwise.
	ChangeRatio float64
}

// EvaluateStop checks the stop conditions in fixed precedence order:
// consensus, round limit, low change, no proposed changes. prevCandidate
// empty means no earlier candidate exists, which disables the low-change
// check entirely.
func EvaluateStop(cfg RunConfig, tally RoundTally, prevCandidate, candidate string) StopDecision {
	d := StopDecision{ChangeRatio: -1}

	if tally.Approvals >= cfg.ApprovalsRequired() && tally.CriticalObjections == 0 {
		d.Stop = true
		d.Reason = StopConsensusReached
		d.Consensus = true
		return d
	}
	if tally.Round >= cfg.MaxRounds {
		d.Stop = true
		d.Reason = StopMaxRounds
		return d
	}
	if prevCandidate != "" {
		d.ChangeRatio = ChangeRatio(prevCandidate, candidate)
		if d.ChangeRatio < cfg.ChangeThreshold {
			d.Stop = true
			d.Reason = StopLowChange
			return d
		}
	}
	if !tally.ChangesProposed {
		d.Stop = true
		d.Reason = StopNoChangesProposed
		return d
	}
	return d
}

// ChangeRatio computes the token-level edit distance between two texts
// normalized by the longer token count. 0 means identical, 1 means fully
// rewritten.
func ChangeRatio(prev, next string) float64 {
	a := strings.Fields(prev)
	b := strings.Fields(next)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(tokenDistance(a, b)) / float64(longest)
}

// tokenDistance is Levenshtein distance over token slices using a
// two-row table.
func tokenDistance(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// DisagreementSummary renders the unresolved points appended to the
// output when a run stops without consensus.
func DisagreementSummary(state MediatorState, digest Digest) string {
	var b strings.Builder
	b.WriteString("## Remaining Disagreements\n\n")
	if len(state.CriticalObjections) > 0 {
		fmt.Fprintf(&b, "%d critical objection(s) were raised and not resolved.\n\n", len(state.CriticalObjections))
		for _, o := range firstN(state.CriticalObjections, summaryItemsLimit) {
			fmt.Fprintf(&b, "- %s\n", o)
		}
		b.WriteString("\n")
	}
	if len(digest.Objections) > 0 {
		b.WriteString("Open objections:\n")
		for _, o := range firstN(digest.Objections, summaryItemsLimit) {
			fmt.Fprintf(&b, "- %s\n", o)
		}
		b.WriteString("\n")
	}
	if len(digest.Missing) > 0 {
		b.WriteString("Points flagged as missing:\n")
		for _, m := range firstN(digest.Missing, summaryItemsLimit) {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		b.WriteString("\n")
	}
	b.WriteString("Consensus not reached within round limits.\n")
	return b.String()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
