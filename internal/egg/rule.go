package egg

import (
	"fmt"
	"regexp"
)

// Rule is a compiled matching rule. Compile once, match many; the regexp
// backing is an implementation detail so the matching engine stays swappable.
type Rule interface {
	// CountMatches returns the number of non-overlapping matches in text.
	CountMatches(text string) int
	// Pattern returns the source expression the rule was compiled from.
	Pattern() string
}

type regexRule struct {
	re *regexp.Regexp
}

func (r *regexRule) CountMatches(text string) int {
	return len(r.re.FindAllStringIndex(text, -1))
}

func (r *regexRule) Pattern() string {
	return r.re.String()
}

// Compile builds a Rule from a regular expression. A pattern that does not
// compile yields ErrInvalidRule.
func Compile(pattern string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return &regexRule{re: re}, nil
}

// WordPattern builds the expression used for auto-discovered types: the given
// word matched whole and case-insensitively.
func WordPattern(word string) string {
	return `(?i)\b` + regexp.QuoteMeta(word) + `\b`
}
