package secrets

import (
	"regexp"
	"strings"
)

// builtinDirectives are the default in-source allow directives. They match
// as whole tokens (word-boundary aware) and are case-sensitive.
var builtinDirectives = []*regexp.Regexp{
	regexp.MustCompile(`\bguardy:ignore\b`),
	regexp.MustCompile(`\bguardy:ignore-line\b`),
	regexp.MustCompile(`\bguardy:ignore-next\b`),
	regexp.MustCompile(`\bguardy:allow\b`),
}

var ignoreNextDirective = regexp.MustCompile(`\bguardy:ignore-next\b`)

// CommentFilter suppresses matches on lines carrying an explicit developer
// allow-directive. It inspects only the line recorded on the SecretMatch
// (for same-line directives) and its successor (for ignore-next); it never
// re-reads the file.
type CommentFilter struct {
	customSubstrings []string
}

// NewCommentFilter constructs a CommentFilter honoring the built-in
// directives plus any additional plain-substring directives from config.
func NewCommentFilter(customSubstrings []string) *CommentFilter {
	return &CommentFilter{customSubstrings: customSubstrings}
}

// ShouldIgnore reports whether m should be suppressed: either its own line
// carries a directive, or the line immediately preceding it carried
// ignore-next.
func (f *CommentFilter) ShouldIgnore(m SecretMatch) bool {
	if f.lineHasDirective(m.LineContent) {
		return true
	}
	if m.PrecedingLine != "" && ignoreNextDirective.MatchString(m.PrecedingLine) {
		return true
	}
	return false
}

func (f *CommentFilter) lineHasDirective(line string) bool {
	for _, rx := range builtinDirectives {
		if rx.MatchString(line) {
			return true
		}
	}
	for _, sub := range f.customSubstrings {
		if sub != "" && strings.Contains(line, sub) {
			return true
		}
	}
	return false
}
