package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// SentinelignoreMatcher loads and evaluates .sentinelignore patterns
// hierarchically. It uses the same gitignore pattern syntax and
// hierarchical model as GitignoreMatcher, but searches for .sentinelignore
// files, letting a repo declare scan-specific exclusions (e.g. known test
// fixtures carrying fake credentials) separately from its .gitignore.
type SentinelignoreMatcher struct {
	root     string
	matchers map[string]*gitignore.GitIgnore
	// dirs stores the sorted list of directory keys for deterministic
	// iteration from root toward the file's parent directory.
	dirs   []string
	logger *slog.Logger
}

// NewSentinelignoreMatcher creates a new SentinelignoreMatcher rooted at the
// given directory. It walks rootDir to discover all .sentinelignore files
// and compiles their patterns using sabhiram/go-gitignore.
//
// If no .sentinelignore files exist, the matcher returns successfully and
// IsIgnored always returns false. Missing or unreadable .sentinelignore
// files at individual directory levels are logged and skipped without
// error.
func NewSentinelignoreMatcher(rootDir string) (*SentinelignoreMatcher, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root path %s: %w", rootDir, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", absRoot)
	}

	logger := slog.Default().With("component", "sentinelignore")

	m := &SentinelignoreMatcher{
		root:     absRoot,
		matchers: make(map[string]*gitignore.GitIgnore),
		logger:   logger,
	}

	if err := m.discoverSentinelignoreFiles(); err != nil {
		return nil, fmt.Errorf("discovering .sentinelignore files in %s: %w", absRoot, err)
	}

	logger.Debug("sentinelignore matcher initialized",
		"root", absRoot,
		"sentinelignore_count", len(m.matchers),
	)

	return m, nil
}

func (m *SentinelignoreMatcher) discoverSentinelignoreFiles() error {
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return filepath.SkipDir
		}

		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		if d.IsDir() || d.Name() != ".sentinelignore" {
			return nil
		}

		dirPath := filepath.Dir(path)
		relDir, err := filepath.Rel(m.root, dirPath)
		if err != nil {
			m.logger.Debug("skipping .sentinelignore, cannot compute relative path",
				"path", path, "error", err)
			return nil
		}

		compiled, err := gitignore.CompileIgnoreFile(path)
		if err != nil {
			m.logger.Debug("skipping unreadable .sentinelignore",
				"path", path, "error", err)
			return nil
		}

		if relDir == "" {
			relDir = "."
		}

		m.matchers[relDir] = compiled
		m.logger.Debug("loaded .sentinelignore", "dir", relDir, "path", path)

		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory tree: %w", err)
	}

	m.dirs = make([]string, 0, len(m.matchers))
	for dir := range m.matchers {
		m.dirs = append(m.dirs, dir)
	}
	sort.Strings(m.dirs)

	return nil
}

// IsIgnored reports whether the given path should be ignored according to
// the loaded .sentinelignore rules, evaluated from the root directory down
// to the file's parent directory. A file is ignored if any ancestor's
// .sentinelignore matches it; negation patterns within one file can
// override matches from that same file.
func (m *SentinelignoreMatcher) IsIgnored(path string, isDir bool) bool {
	normalizedPath := filepath.ToSlash(path)
	normalizedPath = strings.TrimPrefix(normalizedPath, "./")

	if normalizedPath == "" || normalizedPath == "." {
		return false
	}

	matchPath := normalizedPath
	if isDir && !strings.HasSuffix(matchPath, "/") {
		matchPath += "/"
	}

	for _, dir := range m.dirs {
		matcher := m.matchers[dir]

		if dir != "." {
			prefix := dir + "/"
			if !strings.HasPrefix(normalizedPath, prefix) {
				continue
			}
		}

		var relPath string
		if dir == "." {
			relPath = matchPath
		} else {
			relPath = strings.TrimPrefix(matchPath, dir+"/")
		}

		if matcher.MatchesPath(relPath) {
			m.logger.Debug("path matched sentinelignore",
				"path", normalizedPath,
				"sentinelignore_dir", dir,
				"rel_path", relPath,
			)
			return true
		}
	}

	return false
}

// PatternCount returns the total number of .sentinelignore files loaded.
func (m *SentinelignoreMatcher) PatternCount() int {
	return len(m.matchers)
}

var _ Ignorer = (*SentinelignoreMatcher)(nil)
