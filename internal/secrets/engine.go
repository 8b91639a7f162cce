package secrets

import (
	"log/slog"
)

// lineIndex is a precomputed prefix-sum of line-start byte offsets, used to
// convert a byte offset into 1-based (line, column) coordinates without
// rescanning the content for every match.
type lineIndex struct {
	starts []int // starts[i] is the byte offset where line i (0-based) begins
	lines  []string
}

func buildLineIndex(content string) lineIndex {
	lines := splitLinesKeepOffsets(content)
	starts := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		starts[i] = pos
		pos += len(l) + 1 // +1 for the newline consumed between lines
	}
	return lineIndex{starts: starts, lines: lines}
}

// splitLinesKeepOffsets splits content on "\n" without dropping the trailing
// empty segment introduced by a final newline, so offset arithmetic stays
// consistent with the raw byte stream.
func splitLinesKeepOffsets(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}

// locate converts a byte offset into a 1-based line number, a 1-based
// column, and the full content of that line. offset may equal len(content)
// (the position just past the last byte), in which case it resolves to the
// end of the final line.
func (idx lineIndex) locate(offset int) (line, column int, lineContent string) {
	lo, hi := 0, len(idx.starts)-1
	found := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if idx.starts[mid] <= offset {
			found = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	column = offset - idx.starts[found] + 1
	return found + 1, column, idx.lines[found]
}

// preceding returns the content of the line before the given 1-based line
// number, or "" if line is the first line.
func (idx lineIndex) preceding(line int) string {
	if line-2 < 0 || line-2 >= len(idx.lines) {
		return ""
	}
	return idx.lines[line-2]
}

// Engine executes the active pattern set against file content and
// materializes provisional SecretMatch records.
type Engine struct {
	lib    *Library
	logger *slog.Logger
}

// NewEngine constructs an Engine bound to lib.
func NewEngine(lib *Library) *Engine {
	return &Engine{lib: lib, logger: slog.Default().With("component", "pattern-engine")}
}

// Run executes every pattern named in activeIndices against content and
// returns provisional matches plus any warnings raised by coordinate
// validation failures. Patterns are executed independently; two patterns
// matching the same span each produce a record (no cross-pattern dedup).
func (e *Engine) Run(filePath string, content string, activeIndices []int) ([]SecretMatch, []Warning) {
	if len(activeIndices) == 0 {
		return nil, nil
	}

	idx := buildLineIndex(content)
	patterns := e.lib.Patterns()

	var matches []SecretMatch
	var warnings []Warning

	for _, pi := range activeIndices {
		p := patterns[pi]
		locs := p.Regex.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]

			if !(0 <= start && start < end && end <= len(content)) {
				warnings = append(warnings, Warning{
					Path:    filePath,
					Message: "pattern " + p.ID + ": match position out of bounds, dropped",
				})
				continue
			}

			startLine, colStart, lineContent := idx.locate(start)
			// end-1 is the offset of the match's last byte; locating it
			// (rather than end itself) keeps a match ending at a line's
			// final character from being reported as starting the next line.
			endLine, colEndInclusive, _ := idx.locate(end - 1)
			colEnd := colEndInclusive + 1

			matched := content[start:end]
			if endLine != startLine {
				// Multi-line match (e.g. a PEM block): report it anchored at
				// its start line only, a documented limitation.
				matches = append(matches, SecretMatch{
					FilePath:      filePath,
					Line:          startLine,
					ColumnStart:   colStart,
					ColumnEnd:     colStart + len(matched),
					MatchedBytes:  matched,
					PatternID:     p.ID,
					Description:   p.Description,
					LineContent:   lineContent,
					PrecedingLine: idx.preceding(startLine),
				})
				continue
			}

			if colStart < 1 || colEnd-1 > len(lineContent) || colStart > colEnd ||
				lineContent[colStart-1:colEnd-1] != matched {
				warnings = append(warnings, Warning{
					Path:    filePath,
					Message: "pattern " + p.ID + ": match does not lie within its reported line, dropped",
				})
				continue
			}

			matches = append(matches, SecretMatch{
				FilePath:      filePath,
				Line:          startLine,
				ColumnStart:   colStart,
				ColumnEnd:     colEnd,
				MatchedBytes:  matched,
				PatternID:     p.ID,
				Description:   p.Description,
				LineContent:   lineContent,
				PrecedingLine: idx.preceding(startLine),
			})
		}
	}

	return matches, warnings
}
