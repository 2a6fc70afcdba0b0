// Package hint matches gateway error messages against configured patterns
// and yields guidance text to append for the calling agent. A validation
// rejection like "table x has no alias" can thus carry a deployment-specific
// remediation hint back to the model that wrote the query.
package hint

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is the matcher's own rule type.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher evaluates error messages against ordered rules.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher creates a new Matcher. Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("hint: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Hint returns the messages of every rule matching errMsg, top to bottom,
// joined with newlines. Empty string when nothing matches.
func (m *Matcher) Hint(errMsg string) string {
	var matches []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			matches = append(matches, rule.message)
		}
	}
	return strings.Join(matches, "\n")
}

// Patterns returns the patterns that matched errMsg, for logging. Nil when
// nothing matches.
func (m *Matcher) Patterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
