package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pattern is a value pattern to redact.
type Pattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Redactor redacts secrets from log attributes.
type Redactor struct {
	keys     []string
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// defaultKeys are substrings of attribute keys holding secrets. RADIUS
// attribute names (User-Password, CHAP-Password) match as well.
var defaultKeys = []string{
	"password", "passwd", "secret", "token",
	"authorization", "private_key",
}

var defaultPatterns = []Pattern{
	{Name: "bearer_token", Pattern: `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, Replacement: "Bearer ***"},
	{Name: "password", Pattern: `(?i)(password|passwd|secret)\s*[:=]\s*\S+`, Replacement: "$1=***"},
}

// NewRedactor creates a Redactor with the default keys and patterns plus
// the given ones.
func NewRedactor(keys []string, patterns []Pattern) (*Redactor, error) {
	r := &Redactor{}
	for _, k := range append(append([]string(nil), defaultKeys...), keys...) {
		r.keys = append(r.keys, strings.ToLower(k))
	}

	for _, p := range append(append([]Pattern(nil), defaultPatterns...), patterns...) {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r, nil
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr function.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if r.isSensitiveKey(a.Key) {
		return slog.String(a.Key, redactValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// RedactString applies the redaction patterns to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

func (r *Redactor) isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

// redactValue hides a secret, keeping a short prefix of long values.
func redactValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:2] + "***"
}
