// Package guard protects HTTP routes. Requests whose path matches a protected
// pattern must carry a token for a live session; everything else passes through.
package guard

import (
	"fmt"
	"regexp"
)

// Matcher tests request paths against a list of patterns. Each pattern is a
// regular expression that must match the whole path, so "/api/entries(.*)"
// covers "/api/entries" and everything below it.
type Matcher struct {
	patterns []*regexp.Regexp
}

// NewMatcher compiles patterns.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, fmt.Errorf("route pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether path matches any pattern.
func (m *Matcher) Match(path string) bool {
	for _, re := range m.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
