package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelscan/sentinel/internal/discovery"
	"github.com/sentinelscan/sentinel/internal/pipeline"
)

// Scanner is the top-level orchestrator wiring discovery, the content
// prefilter, the pattern engine, entropy validation, and comment-directive
// suppression into one Scan call per root.
type Scanner struct {
	cfg        ScannerConfig
	lib        *Library
	prefilter  *Prefilter
	engine     *Engine
	entropy    *Validator
	comments   *CommentFilter
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewScanner constructs a Scanner. lib may be built with LoadLibrary plus any
// config-resolved overrides before being passed in.
func NewScanner(cfg ScannerConfig, lib *Library) *Scanner {
	return &Scanner{
		cfg:        cfg,
		lib:        lib,
		prefilter:  NewPrefilter(lib),
		engine:     NewEngine(lib),
		entropy:    NewValidator(cfg.EntropyThreshold),
		comments:   NewCommentFilter(cfg.IgnoreComments),
		dispatcher: NewDispatcher(cfg),
		logger:     slog.Default().With("component", "scanner"),
	}
}

// Scan discovers files under each root, applies the filter chain and
// detection pipeline, and returns one combined ScanResult.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*ScanResult, error) {
	start := time.Now()
	agg := NewAggregator()

	var allTasks []FileTask
	fileContent := make(map[string]string)

	for _, root := range roots {
		dr, err := s.discover(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("discovering %s: %w", root, err)
		}

		agg.AddDiscovered(int64(dr.TotalFound))
		for reason, count := range dr.SkipReasons {
			agg.AddFiltered(skipReasonStage(reason), int64(count))
		}

		for _, fd := range dr.Files {
			if fd.Error != nil {
				agg.AddFile(FileResult{Path: fd.Path, Err: fd.Error})
				continue
			}
			allTasks = append(allTasks, FileTask{Path: fd.Path, Size: fd.Size})
			fileContent[fd.Path] = fd.Content
		}
	}

	results := s.dispatcher.Run(ctx, allTasks, func(ctx context.Context, t FileTask) FileResult {
		return s.processFile(t, fileContent[t.Path])
	})

	for _, r := range results {
		agg.AddFile(r)
	}

	s.applyPostFilters(agg)

	runID := uuid.NewString()
	result := agg.Finalize(runID, time.Since(start).Nanoseconds())
	return &result, nil
}

// processFile runs the prefilter, pattern engine, and per-file line count
// for one file's already-loaded content.
func (s *Scanner) processFile(t FileTask, content string) FileResult {
	active := s.prefilter.ActiveSet([]byte(content))
	matches, warnings := s.engine.Run(t.Path, content, active)

	lines := int64(strings.Count(content, "\n"))
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		lines++
	}

	return FileResult{
		Path:     t.Path,
		Matches:  matches,
		Warnings: warnings,
		Bytes:    int64(len(content)),
		Lines:    lines,
	}
}

// applyPostFilters runs the entropy validator and comment-directive filter
// over the full accumulated match set, removing matches that fail either
// check and updating the corresponding stats counters.
func (s *Scanner) applyPostFilters(agg *Aggregator) {
	kept := agg.Matches()[:0:0]
	for _, m := range agg.Matches() {
		if s.cfg.EntropyEnabled {
			p := s.patternFor(m.PatternID)
			if p != nil && requiresEntropy(*p) {
				if !s.entropy.IsRandom(m.MatchedBytes, p.Entropy) {
					agg.NoteEntropyFiltered()
					continue
				}
			}
		}

		if s.comments.ShouldIgnore(m) {
			agg.NoteCommentFiltered()
			continue
		}

		kept = append(kept, m)
	}

	agg.SetFinalMatches(kept)
}

func (s *Scanner) patternFor(id string) *Pattern {
	for i := range s.lib.patterns {
		if s.lib.patterns[i].ID == id {
			return &s.lib.patterns[i]
		}
	}
	return nil
}

func requiresEntropy(p Pattern) bool {
	return p.Entropy != nil
}

func (s *Scanner) discover(ctx context.Context, root string) (*pipeline.DiscoveryResult, error) {
	gitignoreMatcher, err := discovery.NewGitignoreMatcher(root)
	if err != nil {
		return nil, err
	}
	sentinelMatcher, err := discovery.NewSentinelignoreMatcher(root)
	if err != nil {
		return nil, err
	}
	defaultMatcher := discovery.NewDefaultIgnoreMatcher()

	var patternFilter *discovery.PatternFilter
	if len(s.cfg.IgnoreGlobs) > 0 {
		patternFilter = discovery.NewPatternFilter(discovery.PatternFilterOptions{
			Excludes: s.cfg.IgnoreGlobs,
		})
	}

	walker := discovery.NewWalker()
	return walker.Walk(ctx, discovery.WalkerConfig{
		Root:                  root,
		GitignoreMatcher:      gitignoreMatcher,
		SentinelignoreMatcher: sentinelMatcher,
		DefaultIgnorer:        defaultMatcher,
		PatternFilter:         patternFilter,
		GitTrackedOnly:        s.cfg.GitTrackedOnly,
		SkipLargeFiles:        s.cfg.MaxFileSize,
	})
}

// skipReasonStage maps the walker's free-form skip reason keys onto the
// three-stage path -> size -> binary filter chain stats report.
func skipReasonStage(reason string) string {
	switch reason {
	case "ignored", "ignored_dir", "pattern_filter", "not_tracked", "symlink_loop", "symlink_error":
		return "path"
	case "large_file":
		return "size"
	case "binary":
		return "binary"
	default:
		return "path"
	}
}

