// Package security keeps provider credentials out of logs and bounds the
// size and nesting of untrusted JSON documents.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactorService is the name under which the process-wide *Redactor is
// registered so modules can add the secrets they load.
const RedactorService = "security.redactor"

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|api_?key|credential|authorization)`)

// Redactor replaces secret values in strings and maps with a redaction
// placeholder. It matches known provider key formats by pattern and runtime
// credentials by literal value. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings and values already known are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lit := range r.literals {
		if lit == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a custom key may contain a prefix that a pattern
	// would only partially consume.
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// RedactMap walks a decoded YAML or JSON document and replaces values whose
// keys look like secret names. Other strings are passed through Redact.
// It is used when printing a resolved configuration.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if secretKeyPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = RedactPlaceholder
				continue
			}
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for i, item := range val {
				switch sub := item.(type) {
				case map[string]any:
					r.RedactMap(sub)
				case string:
					val[i] = r.Redact(sub)
				}
			}
		case string:
			if redacted := r.Redact(val); redacted != val {
				m[k] = redacted
			}
		}
	}
}

// DefaultPatterns returns compiled regex patterns for the API key formats of
// the model and voice providers a companion is configured with.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Anthropic: sk-ant-api03-...
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9_\-]{20,}`),
		// OpenAI, including project and service account keys.
		regexp.MustCompile(`sk-(?:proj-|svcacct-)?[a-zA-Z0-9_\-]{20,}`),
		// ElevenLabs: sk_ followed by hex.
		regexp.MustCompile(`sk_[a-f0-9]{32,}`),
		// Groq
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// xAI
		regexp.MustCompile(`xai-[a-zA-Z0-9]{20,}`),
		// Google AI Studio / Gemini
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		// OpenRouter
		regexp.MustCompile(`sk-or-v1-[a-f0-9]{32,}`),
		// HTTP bearer credentials.
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.=]{16,}`),
	}
}
