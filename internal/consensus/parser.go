package consensus

import (
	"encoding/json"
	"regexp"
	"strings"
)

// The parser converts raw model text into structured objects with staged
// recovery: direct decode, fenced ```json block, then the first balanced
// {...} span. strict mode disables tiers 2 and 3.

// ParseAnswer parses a participant round-1 response.
func ParseAnswer(raw, modelName string, strict bool) (Response, error) {
	obj, err := parseObject(raw, strict)
	if err != nil {
		return Response{}, err
	}

	answer, ok := stringifyAnswer(obj["answer"])
	if !ok {
		return Response{}, parseErrorf(raw, "missing 'answer' field in participant response")
	}

	return Response{
		ModelName:  modelName,
		Answer:     answer,
		Confidence: floatField(obj, "confidence"),
		Raw:        raw,
	}, nil
}

// ParseCritique parses a participant round-2+ critique response.
func ParseCritique(raw, modelName string, strict bool) (Response, error) {
	obj, err := parseObject(raw, strict)
	if err != nil {
		return Response{}, err
	}

	approve, ok := obj["approve"].(bool)
	if !ok {
		return Response{}, parseErrorf(raw, "missing or invalid 'approve' field in critique")
	}
	critical, ok := obj["critical"].(bool)
	if !ok {
		return Response{}, parseErrorf(raw, "missing or invalid 'critical' field in critique")
	}

	return Response{
		ModelName:  modelName,
		Approve:    &approve,
		Critical:   &critical,
		Objections: stringList(obj["objections"]),
		Missing:    stringList(obj["missing"]),
		Edits:      stringList(obj["edits"]),
		Confidence: floatField(obj, "confidence"),
		Raw:        raw,
	}, nil
}

// ParseSynthesis parses the mediator's round-1 synthesis output.
func ParseSynthesis(raw string, strict bool) (Synthesis, error) {
	obj, err := parseObject(raw, strict)
	if err != nil {
		return Synthesis{}, err
	}

	candidate, ok := stringifyAnswer(obj["candidate_answer"])
	if !ok {
		return Synthesis{}, parseErrorf(raw, "missing 'candidate_answer' field in synthesis")
	}
	rationale, ok := obj["rationale"].(string)
	if !ok {
		return Synthesis{}, parseErrorf(raw, "missing 'rationale' field in synthesis")
	}

	return Synthesis{
		CandidateAnswer: candidate,
		Rationale:       rationale,
		CommonPoints:    stringList(obj["common_points"]),
		Objections:      stringList(obj["objections"]),
		Missing:         stringList(obj["missing"]),
		SuggestedEdits:  stringList(obj["suggested_edits"]),
	}, nil
}

// ParseUpdate parses the mediator's round-2+ update output.
func ParseUpdate(raw string, strict bool) (Update, error) {
	obj, err := parseObject(raw, strict)
	if err != nil {
		return Update{}, err
	}

	candidate, ok := stringifyAnswer(obj["candidate_answer"])
	if !ok {
		return Update{}, parseErrorf(raw, "missing 'candidate_answer' field in update")
	}
	rationale, ok := obj["rationale"].(string)
	if !ok {
		return Update{}, parseErrorf(raw, "missing 'rationale' field in update")
	}

	return Update{CandidateAnswer: candidate, Rationale: rationale}, nil
}

var fencePattern = regexp.MustCompile("(?is)```(?:json)?\\s*\\n(.*?)\\n```")

func parseObject(raw string, strict bool) (map[string]any, error) {
	// Tier 1: direct decode.
	if obj, ok := decodeObject(raw); ok {
		return obj, nil
	}
	if strict {
		return nil, parseErrorf(raw, "invalid JSON in strict mode")
	}

	// Tier 2: fenced code block.
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok {
			return obj, nil
		}
	}

	// Tier 3: first balanced brace span.
	if span := firstObjectSpan(raw); span != "" {
		if obj, ok := decodeObject(span); ok {
			return obj, nil
		}
	}

	return nil, parseErrorf(raw, "no decodable JSON object after all recovery tiers")
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// firstObjectSpan scans for the first balanced {...} span, tracking string
// literals and escapes so braces inside strings do not count.
func firstObjectSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// stringifyAnswer accepts string answers as-is; structured values (nested
// objects, arrays, numbers) are re-serialized to compact JSON so downstream
// consumers always see strings.
func stringifyAnswer(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func floatField(obj map[string]any, key string) *float64 {
	f, ok := obj[key].(float64)
	if !ok {
		return nil
	}
	return &f
}
