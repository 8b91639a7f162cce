package secrets

import (
	"sort"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// Prefilter runs a single Aho-Corasick pass over file content to determine
// which patterns could possibly match, avoiding P*N regex work in favor of
// one O(N) scan plus a small set-union.
type Prefilter struct {
	trie      *ahocorasick.Trie
	lib       *Library
	keywordAt []string // keywordAt[i] is the keyword registered as pattern i in the trie
}

// NewPrefilter builds the shared automaton over the union of all keywords
// declared by lib. Case-insensitive, leftmost-longest match semantics (the
// library's default behavior).
func NewPrefilter(lib *Library) *Prefilter {
	keywords := lib.Keywords()
	sort.Strings(keywords) // deterministic trie construction

	builder := ahocorasick.NewTrieBuilder()
	builder.AddStrings(keywords)
	trie := builder.Build()

	return &Prefilter{trie: trie, lib: lib, keywordAt: keywords}
}

// ActiveSet returns the pattern indices that could possibly match content,
// ordered by descending priority. always_run patterns are always included.
// A file with no keyword hits and no always_run patterns yields an empty set.
func (pf *Prefilter) ActiveSet(content []byte) []int {
	active := make(map[int]struct{})

	for _, idx := range pf.lib.AlwaysRunIndices() {
		active[idx] = struct{}{}
	}

	for _, match := range pf.trie.MatchString(caseFold(content)) {
		kw := match.MatchString()
		for _, idx := range pf.lib.IndicesForKeyword(kw) {
			active[idx] = struct{}{}
		}
	}

	patterns := pf.lib.Patterns()
	result := make([]int, 0, len(active))
	for idx := range active {
		result = append(result, idx)
	}
	sort.Slice(result, func(i, j int) bool {
		if patterns[result[i]].Priority != patterns[result[j]].Priority {
			return patterns[result[i]].Priority > patterns[result[j]].Priority
		}
		return result[i] < result[j]
	})

	return result
}

// caseFold lowercases content for case-insensitive keyword matching. The
// trie itself is built from lowercased keywords (pattern.go normalizes
// keyword case), so folding the haystack the same way makes the match
// case-insensitive without the library needing its own ignore-case mode.
func caseFold(content []byte) string {
	out := make([]byte, len(content))
	for i, b := range content {
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}
