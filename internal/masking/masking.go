// Package masking redacts secret-shaped values before they are embedded
// in an LLM prompt: bearer tokens, key/secret assignments, and AWS access
// keys that might otherwise leak into a free-text prompt or report.
package masking

import "regexp"

// CompiledPattern pairs a compiled regex with its replacement text.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

var builtinPatterns = []CompiledPattern{
	{Name: "bearer_token", Regex: regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{10,}`), Replacement: "bearer ***MASKED***"},
	{Name: "api_key_assignment", Regex: regexp.MustCompile(`(?i)(api[_-]?key|token|secret)\s*[:=]\s*\S+`), Replacement: "$1=***MASKED***"},
	{Name: "aws_access_key", Regex: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), Replacement: "***MASKED_AWS_KEY***"},
}

// Service applies the built-in patterns to free text. Stateless and safe
// for concurrent use.
type Service struct {
	patterns []CompiledPattern
}

// NewService returns a Service with the built-in pattern set.
func NewService() *Service {
	return &Service{patterns: builtinPatterns}
}

// Mask applies every pattern to text and returns the redacted result.
func (s *Service) Mask(text string) string {
	out := text
	for _, p := range s.patterns {
		out = p.Regex.ReplaceAllString(out, p.Replacement)
	}
	return out
}
