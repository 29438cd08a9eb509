package logging

import (
	"regexp"
)

// rule is one redaction pattern. An empty replacement uses the sanitizer's
// placeholder.
type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Sanitizer redacts secrets and image payloads from log messages.
type Sanitizer struct {
	rules    []rule
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rules:    defaultRules(),
		redacted: "[REDACTED]",
	}
}

func defaultRules() []rule {
	specs := []struct {
		pattern     string
		replacement string
	}{
		// Data URLs and bare base64 blobs. These go first so that a key-like
		// run inside an image is never half-replaced.
		{`data:[a-zA-Z0-9.+/-]*;base64,[A-Za-z0-9+/_=-]{16,}`, "[IMAGE DATA]"},
		{`[A-Za-z0-9+/]{256,}={0,2}`, "[IMAGE DATA]"},
		// Google AI
		{`AIza[a-zA-Z0-9_-]{35}`, ""},
		// Resend
		{`re_[A-Za-z0-9]{6,}_[A-Za-z0-9]{16,}`, ""},
		// Credentials embedded in redis:// URLs
		{`(rediss?://[^:/@\s]*:)[^@\s]+@`, "${1}[REDACTED]@"},
		// Generic Bearer tokens
		{`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`, ""},
		// Generic API keys
		{`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`, ""},
		// Generic secrets
		{`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`, ""},
		// Generic passwords
		{`(?i)password["'\s:=]+[^\s"']{8,}`, ""},
		// Generic tokens
		{`(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`, ""},
	}

	rules := make([]rule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, rule{re: regexp.MustCompile(s.pattern), replacement: s.replacement})
	}
	return rules
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, r := range s.rules {
		repl := r.replacement
		if repl == "" {
			repl = s.redacted
		}
		result = r.re.ReplaceAllString(result, repl)
	}
	return result
}

// SanitizeMap redacts values in a map.
func (s *Sanitizer) SanitizeMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range m {
		switch val := v.(type) {
		case string:
			result[k] = s.Sanitize(val)
		case map[string]interface{}:
			result[k] = s.SanitizeMap(val)
		default:
			result[k] = v
		}
	}
	return result
}

// AddPattern adds a custom pattern replaced by the placeholder.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.rules = append(s.rules, rule{re: re})
	return nil
}

// SetRedactedPlaceholder sets the placeholder text for redacted content.
func (s *Sanitizer) SetRedactedPlaceholder(placeholder string) {
	s.redacted = placeholder
}
