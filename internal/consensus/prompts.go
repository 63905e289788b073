package consensus

import (
	"fmt"
	"strings"

	"github.com/kamal-haider/ai-consensus-cli/internal/config"
)

// Prompt pairs the system instructions with the user content for one
// model call.
type Prompt struct {
	System string
	User   string
}

const participantSystem = "You are a participant model in a consensus protocol. " +
	"Your role is to provide the best possible answer to the user prompt.\n\n" +
	"You must respond with a strict JSON object containing:\n" +
	"- answer: string (required) - Your complete answer to the prompt\n" +
	"- confidence: float (optional) - Your confidence level from 0 to 1\n\n" +
	"Do not include any text outside the JSON object."

const critiqueSystem = "You are a participant model critiquing a candidate answer. " +
	"Your role is to evaluate the candidate answer and provide constructive feedback.\n\n" +
	"You must respond with a strict JSON object containing:\n" +
	"- approve: bool (required) - Whether you approve this answer\n" +
	"- critical: bool (required) - Whether you have critical objections\n" +
	"- objections: list of strings (required) - Specific objections or concerns\n" +
	"- missing: list of strings (required) - Important missing information\n" +
	"- edits: list of strings (required) - Suggested improvements or edits\n" +
	"- confidence: float (optional) - Your confidence level from 0 to 1\n\n" +
	"Critical criteria:\n" +
	"- Mark critical=true ONLY for factual errors or advice that could cause harm\n" +
	"- Do NOT mark critical for style issues or minor omissions\n\n" +
	"Do not include any text outside the JSON object."

const synthesisSystem = "You are the mediator in a consensus protocol. " +
	"Your role is to synthesize a candidate answer based on all participant responses.\n\n" +
	"You must respond with a strict JSON object containing:\n" +
	"- candidate_answer: string (required) - The synthesized answer\n" +
	"- rationale: string (required) - Explanation of your synthesis approach\n" +
	"- common_points: list of strings (required) - Points of agreement among participants\n" +
	"- objections: list of strings (required) - Conflicting viewpoints or concerns\n" +
	"- missing: list of strings (required) - Information gaps identified\n" +
	"- suggested_edits: list of strings (required) - Potential improvements\n\n" +
	"Do not include any text outside the JSON object."

const updateSystem = "You are the mediator in a consensus protocol. " +
	"Your role is to update the candidate answer based on participant critiques.\n\n" +
	"You must respond with a strict JSON object containing:\n" +
	"- candidate_answer: string (required) - The updated answer incorporating feedback\n" +
	"- rationale: string (required) - Explanation of how you addressed critiques\n\n" +
	"Do not include any text outside the JSON object."

// ParticipantPrompt builds the round-1 prompt. Every participant receives
// the same text; any cross-model visibility starts in round 2.
func ParticipantPrompt(userPrompt string) Prompt {
	return Prompt{System: participantSystem, User: userPrompt}
}

// CritiquePrompt builds the round-2+ prompt. What the feedback section
// contains depends on the share mode: the digest summary, or the raw
// responses verbatim.
func CritiquePrompt(candidate string, digest Digest, responses []Response, mode config.ShareMode) Prompt {
	var feedback string
	if mode == config.ShareRaw {
		feedback = FormatResponses(responses)
	} else {
		feedback = digest.Format()
	}
	user := fmt.Sprintf("Candidate answer:\n%s\n\nDigest:\n%s", candidate, feedback)
	return Prompt{System: critiqueSystem, User: user}
}

// SynthesisPrompt builds the mediator's first prompt from the collected
// round-1 answers.
func SynthesisPrompt(prompt string, responses []Response) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Original prompt:\n%s\n\nParticipant responses:\n\n", prompt)
	b.WriteString(FormatResponses(responses))
	return Prompt{System: synthesisSystem, User: b.String()}
}

// UpdatePrompt builds the mediator's revision prompt from the current
// candidate and the round's critiques.
func UpdatePrompt(candidate string, critiques []Response) Prompt {
	user := fmt.Sprintf("Candidate answer:\n%s\n\nCritiques:\n%s", candidate, FormatCritiques(critiques))
	return Prompt{System: updateSystem, User: user}
}

// FormatResponses renders round-1 answers for inclusion in a prompt,
// in the order given (callers pass responses already sorted by model
// name).
func FormatResponses(responses []Response) string {
	var b strings.Builder
	for i, r := range responses {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", r.ModelName, r.Answer)
		if r.Confidence != nil {
			fmt.Fprintf(&b, "\n(confidence: %.2f)", *r.Confidence)
		}
	}
	return b.String()
}

// FormatCritiques renders critique responses for the mediator update
// prompt.
func FormatCritiques(critiques []Response) string {
	var b strings.Builder
	for i, c := range critiques {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]", c.ModelName)
		if c.Approve != nil {
			fmt.Fprintf(&b, "\napprove: %t", *c.Approve)
		}
		if c.Critical != nil {
			fmt.Fprintf(&b, "\ncritical: %t", *c.Critical)
		}
		writeItemList(&b, "objections", c.Objections)
		writeItemList(&b, "missing", c.Missing)
		writeItemList(&b, "edits", c.Edits)
	}
	return b.String()
}

func writeItemList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:", label)
	for _, it := range items {
		fmt.Fprintf(b, "\n- %s", it)
	}
}
