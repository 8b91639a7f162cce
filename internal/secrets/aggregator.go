package secrets

import "sort"

// Aggregator accumulates per-file results into one ScanResult with
// deterministic ordering, independent of the order in which the dispatcher's
// workers happen to finish.
type Aggregator struct {
	matches  []SecretMatch
	warnings []Warning
	stats    ScanStats
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddFile folds one file's outcome into the running totals. err, if
// non-nil, increments FilesFailed and records a Warning instead of
// contributing matches.
func (a *Aggregator) AddFile(r FileResult) {
	a.stats.FilesScanned++
	a.stats.BytesProcessed += r.Bytes
	a.stats.LinesProcessed += r.Lines

	if r.Err != nil {
		a.stats.FilesFailed++
		a.warnings = append(a.warnings, Warning{Path: r.Path, Message: r.Err.Error()})
		return
	}

	a.matches = append(a.matches, r.Matches...)
	a.warnings = append(a.warnings, r.Warnings...)
	a.stats.TotalMatches += int64(len(r.Matches))
}

// AddFiltered records n files excluded before content processing, at
// whichever stage of the path -> size -> binary filter chain rejected them.
func (a *Aggregator) AddFiltered(stage string, n int64) {
	switch stage {
	case "path":
		a.stats.FilesFilteredByPath += n
	case "size":
		a.stats.FilesFilteredBySize += n
	case "binary":
		a.stats.FilesFilteredByBinary += n
	}
}

// AddDiscovered increments the raw discovery counter, independent of any
// filtering outcome.
func (a *Aggregator) AddDiscovered(n int64) {
	a.stats.FilesDiscovered += n
}

// NoteCommentFiltered records that a previously-collected match was
// suppressed by the comment-directive filter.
func (a *Aggregator) NoteCommentFiltered() {
	a.stats.MatchesFilteredComment++
}

// NoteEntropyFiltered records that a previously-collected match was
// suppressed by the entropy validator.
func (a *Aggregator) NoteEntropyFiltered() {
	a.stats.MatchesFilteredEntropy++
}

// Finalize sorts matches into a stable, deterministic order and returns the
// assembled ScanResult. Call once, after all files have been added.
func (a *Aggregator) Finalize(runID string, durationNanos int64) ScanResult {
	sort.Slice(a.matches, func(i, j int) bool {
		mi, mj := a.matches[i], a.matches[j]
		if mi.FilePath != mj.FilePath {
			return mi.FilePath < mj.FilePath
		}
		if mi.Line != mj.Line {
			return mi.Line < mj.Line
		}
		if mi.ColumnStart != mj.ColumnStart {
			return mi.ColumnStart < mj.ColumnStart
		}
		return mi.PatternID < mj.PatternID
	})

	sort.Slice(a.warnings, func(i, j int) bool {
		return a.warnings[i].Path < a.warnings[j].Path
	})

	a.stats.DurationNanos = durationNanos

	return ScanResult{
		Matches:  a.matches,
		Stats:    a.stats,
		Warnings: a.warnings,
		RunID:    runID,
	}
}

// SetFinalMatches replaces the accumulated match set, used by the scanner
// orchestrator after applying the comment/entropy post-filters which must
// see the full, sorted match list to update MatchesFiltered* correctly.
func (a *Aggregator) SetFinalMatches(matches []SecretMatch) {
	a.matches = matches
}

// Matches exposes the currently accumulated matches so post-filter stages
// (entropy, comment directives) can run over them before Finalize.
func (a *Aggregator) Matches() []SecretMatch {
	return a.matches
}
