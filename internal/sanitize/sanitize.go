// Package sanitize redacts secrets, identifiers, and absolute paths from any
// string, stack trace, or nested attribute map before it leaves the
// process. Every exported function is pure and reentrant; there is no
// hidden state.
package sanitize

import (
	"regexp"
	"strings"
)

// pattern pairs a compiled regular expression with its replacement token.
// Order matters: more specific key-shape patterns run before the broader
// ones (e.g. the Anthropic key shape before the generic sk- shape) so a
// key is labeled by the most specific shape it matches rather than claimed
// by a looser pattern first.
type pattern struct {
	re          *regexp.Regexp
	replacement string
}

var patterns = []pattern{
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]+`), "[ANTHROPIC_KEY]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`), "[OPENAI_KEY]"},
	{regexp.MustCompile(`pckey_[a-zA-Z0-9\-_]+`), "[PINECONE_KEY]"},
	{regexp.MustCompile(`pa-[a-zA-Z0-9\-_]+`), "[VOYAGE_KEY]"},
	{regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "[UUID]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+`), "[JWT_TOKEN]"},
	{regexp.MustCompile(`(?i)Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN]"},
	{regexp.MustCompile(`(?i)postgres(?:ql)?://\S+`), "[DATABASE_URL]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP_ADDRESS]"},
}

var (
	projectPath = regexp.MustCompile(`/[^\s]*/errorpilot/`)
	homePath    = regexp.MustCompile(`/home/[^\s/]+/`)
)

// sensitiveKeyMarkers are lowercased substrings that, if present in an
// attribute map key, cause the whole value to be replaced with [REDACTED]
// regardless of its contents.
var sensitiveKeyMarkers = []string{
	"password", "secret", "token", "api_key", "apikey",
	"authorization", "cookie", "session", "user_id", "userid",
	"email", "phone", "ssn", "credit_card", "creditcard",
}

// String applies the full redaction battery to s. Idempotent: running it
// twice produces the same result as running it once, since every
// replacement token (e.g. "[EMAIL]") does not itself match any pattern.
func String(s string) string {
	out := s
	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}
	return out
}

// StackTrace sanitizes a multi-line stack trace, preserving line structure
// while collapsing absolute paths to project-relative or home-relative
// prefixes.
func StackTrace(trace string) string {
	lines := strings.Split(trace, "\n")
	for i, line := range lines {
		line = String(line)
		line = projectPath.ReplaceAllString(line, "errorpilot/")
		line = homePath.ReplaceAllString(line, "~/")
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Context recursively sanitizes a nested attribute map. Any key whose
// lowercased form contains one of the sensitive-field markers is replaced
// entirely with "[REDACTED]" without ever inspecting its value. String
// leaves run through String; non-string, non-container leaves pass through
// unchanged.
func Context(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if keyIsSensitive(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case map[string]any:
		return Context(val)
	case []any:
		sanitized := make([]any, len(val))
		for i, item := range val {
			sanitized[i] = sanitizeValue(item)
		}
		return sanitized
	default:
		return v
	}
}

func keyIsSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
