package consensus

// roundRecord is a snapshot of one completed round as seen by the shared
// context. Old rounds are what truncation trims.
type roundRecord struct {
	round  int
	tokens int
}

// ContextBudget tracks an estimate of the shared-context size across
// rounds and trims the oldest rounds when the configured ceiling would be
// exceeded. Estimation is a deliberate over-approximation; the goal is
// never to exceed provider limits, not to fill them exactly.
type ContextBudget struct {
	maxTokens int
	rounds    []roundRecord
	truncated int
}

// NewContextBudget returns a budget with the given ceiling. A ceiling of
// zero or below disables tracking.
func NewContextBudget(maxTokens int) *ContextBudget {
	return &ContextBudget{maxTokens: maxTokens}
}

// EstimateTokens approximates the token count of a text as one token per
// four characters, rounded up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// ResponseTokens estimates the shared-context contribution of a round's
// responses and digest.
func ResponseTokens(responses []Response, digest *Digest) int {
	total := 0
	for _, r := range responses {
		total += EstimateTokens(r.Answer)
		for _, s := range r.Objections {
			total += EstimateTokens(s)
		}
		for _, s := range r.Missing {
			total += EstimateTokens(s)
		}
		for _, s := range r.Edits {
			total += EstimateTokens(s)
		}
	}
	if digest != nil {
		total += EstimateTokens(digest.Format())
	}
	return total
}

// Used reports the tracked token total.
func (b *ContextBudget) Used() int {
	total := 0
	for _, r := range b.rounds {
		total += r.tokens
	}
	return total
}

// Truncated reports how many rounds have been dropped so far.
func (b *ContextBudget) Truncated() int { return b.truncated }

// WouldExceed reports whether adding tokens would cross the ceiling.
func (b *ContextBudget) WouldExceed(tokens int) bool {
	if b.maxTokens <= 0 {
		return false
	}
	return b.Used()+tokens > b.maxTokens
}

// Track records a completed round's token weight. The newest round is
// always admitted; older rounds are dropped first, in order, until the
// total fits. Returns the round numbers dropped by this call.
func (b *ContextBudget) Track(round, tokens int) []int {
	b.rounds = append(b.rounds, roundRecord{round: round, tokens: tokens})
	if b.maxTokens <= 0 {
		return nil
	}
	var dropped []int
	for b.Used() > b.maxTokens && len(b.rounds) > 1 {
		dropped = append(dropped, b.rounds[0].round)
		b.rounds = b.rounds[1:]
		b.truncated++
	}
	return dropped
}

// Retained reports the round numbers still inside the budget, oldest
// first.
func (b *ContextBudget) Retained() []int {
	out := make([]int, 0, len(b.rounds))
	for _, r := range b.rounds {
		out = append(out, r.round)
	}
	return out
}
