// Package sanitize applies regex-based redaction to result cells before they
// leave the gateway. Every cell is already string-coerced by the executor, so
// rules apply uniformly and in order.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule is the sanitizer's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer applies regex-based sanitization to result cell values.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer creates a new Sanitizer. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// SanitizeRows applies every rule, top to bottom, to each cell of rows.
// Rows are modified in place and returned.
func (s *Sanitizer) SanitizeRows(rows [][]string) [][]string {
	if len(s.rules) == 0 {
		return rows
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = s.sanitizeCell(cell)
		}
	}
	return rows
}

func (s *Sanitizer) sanitizeCell(cell string) string {
	for _, rule := range s.rules {
		cell = rule.pattern.ReplaceAllString(cell, rule.replacement)
	}
	return cell
}
