// Package extract finds question-like spans in page text.
package extract

import (
	"time"

	"github.com/dlclark/regexp2"
)

// Matcher finds candidate spans in page text, in order of appearance.
type Matcher interface {
	Name() string
	Match(text string) ([]string, error)
}

// PatternMatcher matches a single regular expression. The expressions
// rely on lazy spans ended by lookahead, which needs a backtracking engine.
type PatternMatcher struct {
	name string
	re   *regexp2.Regexp
}

// matchTimeout bounds a single search so pathological pages cannot stall ingestion.
const matchTimeout = 5 * time.Second

// NewPatternMatcher compiles expr case-insensitively with "." matching newlines.
func NewPatternMatcher(name, expr string) (*PatternMatcher, error) {
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase|regexp2.Singleline)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return &PatternMatcher{name: name, re: re}, nil
}

func mustPattern(name, expr string) *PatternMatcher {
	m, err := NewPatternMatcher(name, expr)
	if err != nil {
		panic(err)
	}
	return m
}

func (p *PatternMatcher) Name() string { return p.name }

// Match returns every non-overlapping match, scanning left to right.
func (p *PatternMatcher) Match(text string) ([]string, error) {
	var out []string
	m, err := p.re.FindStringMatch(text)
	for m != nil && err == nil {
		out = append(out, m.String())
		m, err = p.re.FindNextMatch(m)
	}
	return out, err
}

// DefaultMatchers returns the question shapes in priority order: numbered
// items, "Q<n>." items, parenthesised numbers and worked examples. Each
// span runs until the next marker of its kind, a blank line or the end of
// the text.
func DefaultMatchers() []Matcher {
	return []Matcher{
		mustPattern("numbered", `\d+\.\s+.*?(?=\d+\.\s+|\n\n|\z)`),
		mustPattern("q-numbered", `Q\d+\.\s+.*?(?=Q\d+\.\s+|\n\n|\z)`),
		mustPattern("parenthesized", `\(\d+\)\s+.*?(?=\(\d+\)|\n\n|\z)`),
		mustPattern("example", `Example\s+\d+.*?(?=Example\s+\d+|\n\n|\z)`),
	}
}
