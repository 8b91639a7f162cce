package secrets

import (
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/wasilibs/go-re2/pkg/re2"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedPatternsYAML []byte

// yamlPattern mirrors the external pattern schema (see §6 of the design
// document): base patterns are embedded, user overrides are loaded from an
// external file resolved by the config layer.
type yamlPattern struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Regex          string   `yaml:"regex"`
	Classification string   `yaml:"classification"`
	Keywords       []string `yaml:"keywords"`
	Priority       int      `yaml:"priority"`
	Entropy        *struct {
		MinProbability float64 `yaml:"min_probability"`
		BaseHint       int     `yaml:"base_hint"`
	} `yaml:"entropy"`
}

type yamlPatternsFile struct {
	Patterns []yamlPattern `yaml:"patterns"`
}

// Library is an ordered sequence of Patterns plus a derived keyword index.
// Built once at process startup; read-only afterward.
type Library struct {
	patterns []Pattern
	// keywordIndex maps a lowercased keyword to the indices of patterns in
	// patterns that declare it.
	keywordIndex map[string][]int
	// alwaysRun holds the indices of patterns classified always_run, which
	// bypass the keyword index entirely.
	alwaysRun []int
}

// LoadLibrary builds the pattern library from the embedded base set plus any
// custom patterns supplied in config. If custom patterns fail to parse, the
// base library still loads; failures are returned as warnings, never as a
// fatal error, so the library never enters a half-initialized state.
func LoadLibrary(custom []Pattern) (*Library, []Warning) {
	var warnings []Warning

	base, baseWarnings := parsePatternsYAML(embeddedPatternsYAML, "embedded")
	warnings = append(warnings, baseWarnings...)

	all := make([]Pattern, 0, len(base)+len(custom))
	all = append(all, base...)
	all = append(all, custom...)

	lib := buildLibrary(all)
	return lib, warnings
}

// LoadOverrideFile parses an external YAML pattern file and returns the
// decoded patterns plus per-pattern warnings. A malformed file as a whole
// (invalid YAML document) returns a single warning and no patterns; an
// individual malformed pattern inside an otherwise-valid document is
// dropped with its own warning.
func LoadOverrideFile(path string, data []byte) ([]Pattern, []Warning) {
	return parsePatternsYAML(data, path)
}

func parsePatternsYAML(data []byte, source string) ([]Pattern, []Warning) {
	var doc yamlPatternsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []Warning{{Path: source, Message: fmt.Sprintf("parse patterns: %v", err)}}
	}

	patterns := make([]Pattern, 0, len(doc.Patterns))
	var warnings []Warning

	for _, yp := range doc.Patterns {
		p, err := compilePattern(yp)
		if err != nil {
			warnings = append(warnings, Warning{
				Path:    source,
				Message: fmt.Sprintf("pattern %q: %v", yp.ID, err),
			})
			continue
		}
		patterns = append(patterns, p)
	}

	return patterns, warnings
}

func compilePattern(yp yamlPattern) (Pattern, error) {
	if yp.ID == "" {
		return Pattern{}, fmt.Errorf("missing id")
	}

	class := Classification(yp.Classification)
	switch class {
	case ClassSpecific, ClassContextual, ClassAlwaysRun:
	default:
		return Pattern{}, fmt.Errorf("invalid classification %q", yp.Classification)
	}

	if err := rejectBacktracking(yp.Regex); err != nil {
		return Pattern{}, err
	}

	rx, err := re2.Compile(yp.Regex)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid regex: %w", err)
	}

	if rx.MatchString("") {
		return Pattern{}, fmt.Errorf("regex matches the empty string, rejected")
	}

	keywords := yp.Keywords
	if len(keywords) == 0 {
		keywords = deriveKeywords(yp.Regex)
	}

	priority := yp.Priority
	if priority <= 0 {
		priority = 5
	}

	var entropy *EntropyRequirement
	if yp.Entropy != nil {
		entropy = &EntropyRequirement{
			MinProbability: yp.Entropy.MinProbability,
			BaseHint:       yp.Entropy.BaseHint,
		}
	}

	return Pattern{
		ID:          yp.ID,
		Name:        yp.Name,
		Description: yp.Description,
		Regex:       rx,
		Class:       class,
		Keywords:    keywords,
		Priority:    priority,
		Entropy:     entropy,
	}, nil
}

// backtrackingConstruct matches the regex syntax RE2 cannot express:
// backreferences (\1) and lookaround ((?=...), (?!...), (?<=...), (?<!...)).
// re2.Compile already rejects these at compile time, but checking up front
// produces a clearer warning message than RE2's internal parse error.
var backtrackingConstruct = regexp.MustCompile(`\\[1-9]|\(\?[=!]|\(\?<[=!]`)

func rejectBacktracking(pattern string) error {
	if backtrackingConstruct.MatchString(pattern) {
		return fmt.Errorf("backreferences and lookaround are not permitted (linear-time engine only)")
	}
	return nil
}

// deriveKeywords extracts maximal literal runs of length >= 3 from a regex
// source, excluding escaped metacharacters and character classes. Used when
// a pattern declares no explicit keywords.
func deriveKeywords(pattern string) []string {
	var keywords []string
	var run strings.Builder
	inClass := false

	flush := func() {
		if run.Len() >= 3 {
			keywords = append(keywords, strings.ToLower(run.String()))
		}
		run.Reset()
	}

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		switch {
		case c == '\\':
			flush()
			i++ // skip the escaped character entirely
		case c == '[':
			flush()
			inClass = true
		case c == ']':
			inClass = false
		case inClass:
			// inside a character class, nothing is a literal run
		case isRegexMeta(c):
			flush()
		default:
			run.WriteByte(c)
		}
	}
	flush()

	return keywords
}

func isRegexMeta(c byte) bool {
	switch c {
	case '.', '*', '+', '?', '(', ')', '|', '^', '$', '{', '}':
		return true
	default:
		return false
	}
}

func buildLibrary(patterns []Pattern) *Library {
	lib := &Library{
		patterns:     patterns,
		keywordIndex: make(map[string][]int),
	}

	for i, p := range patterns {
		if p.Class == ClassAlwaysRun {
			lib.alwaysRun = append(lib.alwaysRun, i)
			continue
		}
		for _, kw := range p.Keywords {
			key := strings.ToLower(kw)
			lib.keywordIndex[key] = append(lib.keywordIndex[key], i)
		}
	}

	slog.Default().With("component", "pattern-library").Debug("library built",
		"patterns", len(patterns),
		"keywords", len(lib.keywordIndex),
		"always_run", len(lib.alwaysRun),
	)

	return lib
}

// Patterns returns the full ordered pattern slice. Callers must not mutate
// the returned slice's elements.
func (l *Library) Patterns() []Pattern {
	return l.patterns
}

// Keywords returns the deduplicated set of all keywords declared across the
// library, used to build the shared Aho-Corasick automaton.
func (l *Library) Keywords() []string {
	out := make([]string, 0, len(l.keywordIndex))
	for kw := range l.keywordIndex {
		out = append(out, kw)
	}
	return out
}

// AlwaysRunIndices returns the indices of patterns classified always_run.
func (l *Library) AlwaysRunIndices() []int {
	return l.alwaysRun
}

// IndicesForKeyword returns the pattern indices that declared the given
// (lowercased) keyword.
func (l *Library) IndicesForKeyword(keyword string) []int {
	return l.keywordIndex[keyword]
}
