// Package secrets implements the credential-detection scanning pipeline:
// pattern library, keyword prefilter, regex engine, entropy validator,
// comment-directive filter, worker dispatch, and result aggregation.
package secrets

import "github.com/wasilibs/go-re2/pkg/re2"

// Classification controls how a Pattern participates in the keyword
// prefilter.
type Classification string

const (
	// ClassSpecific patterns have reliable literal keywords (e.g. "sk_live_").
	ClassSpecific Classification = "specific"
	// ClassContextual patterns need surrounding context and weaker keywords
	// (generic API key / generic secret assignments).
	ClassContextual Classification = "contextual"
	// ClassAlwaysRun patterns have no reliable keyword anchor (PEM headers,
	// entropy-only signatures) and always enter the active set.
	ClassAlwaysRun Classification = "always_run"
)

// EntropyRequirement declares that matches from a Pattern must additionally
// clear a randomness threshold before being reported.
type EntropyRequirement struct {
	MinProbability float64
	BaseHint       int // 0 (auto-detect), 16, 36, or 64
}

// Pattern is a named secret signature. Immutable after construction.
type Pattern struct {
	ID          string
	Name        string
	Description string
	Regex       *re2.Regexp
	Class       Classification
	Keywords    []string
	Priority    int // 1-10, higher runs first
	Entropy     *EntropyRequirement
}

// SecretMatch is an immutable result record produced by the PatternEngine
// and, where applicable, filtered by the EntropyValidator and CommentFilter.
type SecretMatch struct {
	FilePath     string
	Line         int
	ColumnStart  int
	ColumnEnd    int
	MatchedBytes string
	PatternID    string
	Description  string
	LineContent  string
	// PrecedingLine is the content of the line immediately before Line, or
	// empty if Line is the first line. Carried so the comment filter can
	// resolve an ignore-next directive without re-reading the file.
	PrecedingLine string
}

// Warning is a non-fatal diagnostic surfaced alongside scan results.
type Warning struct {
	Path    string
	Message string
}

// ScanStats holds the counters updated by workers and the aggregator.
// All fields are monotonically increasing for the duration of one scan.
type ScanStats struct {
	FilesDiscovered        int64
	FilesFilteredByPath    int64
	FilesFilteredBySize    int64
	FilesFilteredByBinary  int64
	FilesScanned           int64
	FilesFailed            int64
	BytesProcessed         int64
	LinesProcessed         int64
	TotalMatches           int64
	MatchesFilteredComment int64
	MatchesFilteredEntropy int64
	DurationNanos          int64
}

// ScanResult is the output of a completed scan.
type ScanResult struct {
	Matches  []SecretMatch
	Stats    ScanStats
	Warnings []Warning
	// RunID correlates this result with external report/sync artifacts.
	// The core never persists it; it merely stamps the value it was given.
	RunID string
}

// ExecutionMode selects how the Dispatcher schedules file-scanning work.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
	ModeAuto       ExecutionMode = "auto"
)

// ScannerConfig is the value object consumed by the core. All fields have
// documented defaults; see DefaultScannerConfig.
type ScannerConfig struct {
	// MaxFileSize is the maximum file size in bytes eligible for scanning.
	MaxFileSize int64
	// StreamingThreshold is the size above which a file is read in bounded
	// chunks rather than loaded wholly into memory.
	StreamingThreshold int64

	// BinaryAllowExtensions and BinaryDenyExtensions short-circuit the
	// content-based binary heuristic for known extensions.
	BinaryAllowExtensions []string
	BinaryDenyExtensions  []string

	// IgnoreGlobs is the user-supplied path-glob ignore list, combined with
	// the built-in always-skipped directories.
	IgnoreGlobs []string

	// EntropyEnabled toggles the EntropyValidator stage entirely.
	EntropyEnabled bool
	// EntropyThreshold is the default minimum probability threshold applied
	// when a Pattern's own EntropyRequirement does not override it.
	EntropyThreshold float64

	// Mode selects sequential, parallel, or auto-sized execution.
	Mode ExecutionMode
	// MaxWorkers is the user ceiling on worker count; 0 means unbounded by
	// the user (still bounded by CPUPercentage).
	MaxWorkers int
	// CPUPercentage is the fraction (0, 1] of available cores usable by the
	// resource ceiling computation.
	CPUPercentage float64
	// AutoThreshold is the file count above which Auto mode selects Parallel.
	AutoThreshold int

	// IgnoreComments is the set of additional plain-substring allow
	// directives honored alongside the built-in word-boundary directives.
	IgnoreComments []string

	// CustomPatterns are additional pattern definitions merged into the
	// embedded base library at library-construction time.
	CustomPatterns []Pattern

	// FollowSymlinks enables symlink traversal. Loop detection is always on.
	FollowSymlinks bool
	// GitTrackedOnly restricts the walk to `git ls-files` output.
	GitTrackedOnly bool
}

// DefaultScannerConfig returns a ScannerConfig populated with the built-in
// defaults. Callers receive a fresh copy; mutating it does not affect
// subsequent calls.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MaxFileSize:        1_048_576,
		StreamingThreshold: 8 * 1_048_576,
		IgnoreGlobs:        append([]string(nil), defaultIgnoreGlobs...),
		EntropyEnabled:     true,
		EntropyThreshold:   1e-5,
		Mode:               ModeAuto,
		MaxWorkers:         0,
		CPUPercentage:      1.0,
		AutoThreshold:      10,
		IgnoreComments:     nil,
	}
}

var defaultIgnoreGlobs = []string{
	".git/**",
	"node_modules/**",
	"dist/**",
	"build/**",
	"target/**",
	"vendor/**",
	"__pycache__/**",
	".next/**",
	"coverage/**",
	".idea/**",
	".vscode/**",
}
