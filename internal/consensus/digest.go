package consensus

import (
	"sort"
	"strings"
)

// Digest caps. The round-1 digest feeding the first synthesis is tighter
// than the rolling critique digest.
const (
	commonPointsCap   = 7
	initialItemsCap   = 3
	critiqueItemsCap  = 5
	commonThreshold   = 0.5
	summaryItemsLimit = 3
)

// BuildInitialDigest reduces round-1 answers into the digest fed to the
// first mediator synthesis. The input must already be in canonical
// participant order; ordering of the output is a pure function of the input.
func BuildInitialDigest(responses []Response) Digest {
	if len(responses) == 0 {
		return Digest{}
	}

	var objections, missing, edits []string
	for _, r := range responses {
		objections = append(objections, r.Objections...)
		missing = append(missing, r.Missing...)
		edits = append(edits, r.Edits...)
	}

	return Digest{
		CommonPoints:   extractCommonPoints(responses),
		Objections:     rankByFrequency(objections, initialItemsCap),
		Missing:        rankByFrequency(missing, initialItemsCap),
		SuggestedEdits: rankByFrequency(edits, initialItemsCap),
	}
}

// UpdateDigest rebuilds the digest from the previous one plus a round of
// critiques. Common points carry over unchanged; critiques do not restate
// them.
func UpdateDigest(prev Digest, critiques []Response) Digest {
	objections := append([]string{}, prev.Objections...)
	missing := append([]string{}, prev.Missing...)
	edits := append([]string{}, prev.SuggestedEdits...)

	for _, c := range critiques {
		objections = append(objections, c.Objections...)
		missing = append(missing, c.Missing...)
		edits = append(edits, c.Edits...)
	}

	return Digest{
		CommonPoints:   prev.CommonPoints,
		Objections:     rankByFrequency(objections, critiqueItemsCap),
		Missing:        rankByFrequency(missing, critiqueItemsCap),
		SuggestedEdits: rankByFrequency(edits, critiqueItemsCap),
	}
}

// Format renders the digest as prompt text.
func (d Digest) Format() string {
	var b strings.Builder
	writeSection := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(title)
		b.WriteString(":\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	writeSection("Common points", d.CommonPoints)
	writeSection("Objections", d.Objections)
	writeSection("Missing", d.Missing)
	writeSection("Suggested edits", d.SuggestedEdits)
	if b.Len() == 0 {
		return "(empty digest)"
	}
	return strings.TrimRight(b.String(), "\n")
}

// Empty reports whether the digest carries no content.
func (d Digest) Empty() bool {
	return len(d.CommonPoints) == 0 && len(d.Objections) == 0 &&
		len(d.Missing) == 0 && len(d.SuggestedEdits) == 0
}

// extractCommonPoints finds sentences shared by at least half of the
// answers. A structured answer (JSON or fenced code) contributes a single
// opaque point instead of sentence fragments, so formatting quirks do not
// turn into spurious objections.
func extractCommonPoints(responses []Response) []string {
	var sentences []string
	for _, r := range responses {
		if isStructuredAnswer(r.Answer) {
			sentences = append(sentences, "structured answer from "+r.ModelName)
			continue
		}
		sentences = append(sentences, splitSentences(r.Answer)...)
	}

	counts := make(map[string]int, len(sentences))
	order := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}

	threshold := float64(len(responses)) * commonThreshold
	var common []string
	for _, s := range order {
		if float64(counts[s]) >= threshold {
			common = append(common, s)
		}
	}

	return rankByFrequencyCounts(common, counts, commonPointsCap)
}

// isStructuredAnswer detects answers that are themselves structured data.
func isStructuredAnswer(answer string) bool {
	t := strings.TrimSpace(answer)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") || strings.HasPrefix(t, "```")
}

// splitSentences breaks text on common terminators, trimming whitespace.
func splitSentences(text string) []string {
	for _, delim := range []string{". ", "! ", "? ", "\n"} {
		text = strings.ReplaceAll(text, delim, "\x00")
	}
	parts := strings.Split(text, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rankByFrequency deduplicates items and orders them by frequency
// descending, ties broken by first-seen position. The input order is the
// canonical participant order, which makes the result deterministic.
func rankByFrequency(items []string, limit int) []string {
	if len(items) == 0 {
		return nil
	}
	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if counts[item] == 0 {
			order = append(order, item)
		}
		counts[item]++
	}
	return rankByFrequencyCounts(order, counts, limit)
}

func rankByFrequencyCounts(unique []string, counts map[string]int, limit int) []string {
	if len(unique) == 0 {
		return nil
	}
	ranked := make([]string, len(unique))
	copy(ranked, unique)

	// Stable sort preserves first-seen order among equal counts.
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
