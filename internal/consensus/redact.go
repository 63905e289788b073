package consensus

import "regexp"

// Secrets must never reach the audit trace, which may be streamed off-box
// by the daemon.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key\s*[=:]\s*)["']?[a-zA-Z0-9_-]+["']?`),
	regexp.MustCompile(`(?i)((?:OPENAI|ANTHROPIC|GEMINI)_API_KEY\s*[=:]\s*)["']?[a-zA-Z0-9_-]+["']?`),
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9._-]+`),
	regexp.MustCompile(`(?i)(token\s*[=:]\s*)["']?[a-zA-Z0-9._-]+["']?`),
}

var sensitiveKey = regexp.MustCompile(`(?i)^(api[_-]?key|token|secret|password|credential)$`)

const redacted = "[REDACTED]"

func redactString(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, "${1}"+redacted)
	}
	return s
}

func redactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sensitiveKey.MatchString(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case string:
		return redactString(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = redactString(s)
		}
		return out
	case map[string]any:
		return redactPayload(t)
	default:
		return v
	}
}
