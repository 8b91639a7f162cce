package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// DefaultMaxFileSize is the default file size threshold (1MB) above which
// files are skipped during discovery.
const DefaultMaxFileSize int64 = 1 * 1024 * 1024

// FlagValues collects all parsed global flag values from the CLI. This
// struct is populated by BindFlags and passed to downstream resolution.
type FlagValues struct {
	Dir            string
	Excludes       []string // exclude glob patterns (repeatable)
	IgnoreComments []string // additional ignore-directive substrings
	Mode           string
	MaxWorkers     int
	CPUPercentage  float64
	MaxFileSize    int64 // bytes, parsed from maxFileSizeRaw
	NoEntropy      bool
	EntropyThresh  float64
	FollowSymlinks bool
	GitTrackedOnly bool
	FailOnFindings bool
	Format         string
	Verbose        bool
	Quiet          bool
}

// maxFileSizeRaw holds the raw string value for --max-file-size before
// parsing. Package-level because Cobra needs a string target for binding.
var maxFileSizeRaw string

// BindFlags registers all global persistent flags on the given Cobra command
// and returns a FlagValues pointer that will be populated when the command is
// executed. Callers should access the returned struct after flag parsing.
func BindFlags(cmd *cobra.Command) *FlagValues {
	fv := &FlagValues{}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&fv.Dir, "dir", "d", ".", "target directory to scan")
	pf.StringArrayVar(&fv.Excludes, "exclude", nil, "exclude glob pattern (repeatable)")
	pf.StringArrayVar(&fv.IgnoreComments, "ignore-comment", nil, "additional allow-directive substring (repeatable)")
	pf.StringVar(&fv.Mode, "mode", "auto", "dispatch mode: sequential, parallel, auto")
	pf.IntVar(&fv.MaxWorkers, "max-workers", 0, "ceiling on worker count (0 = unbounded by user)")
	pf.Float64Var(&fv.CPUPercentage, "cpu-percentage", 1.0, "fraction (0,1] of cores usable by the resource ceiling")
	pf.StringVar(&maxFileSizeRaw, "max-file-size", "1MB", "skip files larger than threshold (e.g. 500KB, 2MB)")
	pf.BoolVar(&fv.NoEntropy, "no-entropy", false, "disable entropy validation")
	pf.Float64Var(&fv.EntropyThresh, "entropy-threshold", 1e-5, "minimum randomness probability for entropy-gated patterns")
	pf.BoolVar(&fv.FollowSymlinks, "follow-symlinks", false, "follow symbolic links during discovery")
	pf.BoolVar(&fv.GitTrackedOnly, "git-tracked-only", false, "only scan files tracked by git")
	pf.BoolVar(&fv.FailOnFindings, "fail-on-findings", false, "exit non-zero if secrets are detected")
	pf.StringVar(&fv.Format, "format", "text", "result format: text, json")
	pf.BoolVarP(&fv.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&fv.Quiet, "quiet", "q", false, "suppress all output except errors")

	return fv
}

// ValidateFlags checks the parsed flag values for correctness and mutual
// exclusion. It also applies environment variable fallbacks and normalizes
// values. Call this from PersistentPreRunE after Cobra has parsed the flags.
func ValidateFlags(fv *FlagValues, cmd *cobra.Command) error {
	applyEnvOverrides(fv, cmd)

	if fv.Verbose && fv.Quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}

	info, err := os.Stat(fv.Dir)
	if err != nil {
		return fmt.Errorf("--dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("--dir: %s is not a directory", fv.Dir)
	}

	switch fv.Mode {
	case "sequential", "parallel", "auto":
	default:
		return fmt.Errorf("--mode: invalid value %q (allowed: sequential, parallel, auto)", fv.Mode)
	}

	switch fv.Format {
	case "text", "json":
	default:
		return fmt.Errorf("--format: invalid value %q (allowed: text, json)", fv.Format)
	}

	if fv.CPUPercentage <= 0 || fv.CPUPercentage > 1 {
		return fmt.Errorf("--cpu-percentage: must be in (0, 1], got %v", fv.CPUPercentage)
	}

	size, err := ParseSize(maxFileSizeRaw)
	if err != nil {
		return fmt.Errorf("--max-file-size: %w", err)
	}
	fv.MaxFileSize = size

	return nil
}

// applyEnvOverrides applies environment variable fallbacks for flags that
// were not explicitly set on the command line. The prefix is SENTINEL_.
func applyEnvOverrides(fv *FlagValues, cmd *cobra.Command) {
	if v := os.Getenv(EnvMode); v != "" && !cmd.Flags().Changed("mode") {
		fv.Mode = v
	}
	if v := os.Getenv(EnvMaxWorkers); v != "" && !cmd.Flags().Changed("max-workers") {
		if n, err := strconv.Atoi(v); err == nil {
			fv.MaxWorkers = n
		}
	}
	if v := os.Getenv(EnvCPUPercentage); v != "" && !cmd.Flags().Changed("cpu-percentage") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			fv.CPUPercentage = f
		}
	}
	if v := os.Getenv(EnvFormat); v != "" && !cmd.Flags().Changed("format") {
		fv.Format = v
	}
	if v := os.Getenv(EnvFailOnFindings); v != "" && !cmd.Flags().Changed("fail-on-findings") {
		if b, err := strconv.ParseBool(v); err == nil {
			fv.FailOnFindings = b
		}
	}

	if os.Getenv("SENTINEL_VERBOSE") == "1" && !cmd.Flags().Changed("verbose") {
		fv.Verbose = true
	}
	if os.Getenv("SENTINEL_QUIET") == "1" && !cmd.Flags().Changed("quiet") {
		fv.Quiet = true
	}
}

// ParseSize parses a human-readable size string into bytes. It supports KB,
// MB, and GB suffixes (case-insensitive). Plain numbers without a suffix are
// treated as bytes. KB = 1024, MB = 1048576, GB = 1073741824.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	upper := strings.ToUpper(s)

	var suffix string
	var multiplier int64

	switch {
	case strings.HasSuffix(upper, "GB"):
		suffix = "GB"
		multiplier = 1024 * 1024 * 1024
	case strings.HasSuffix(upper, "MB"):
		suffix = "MB"
		multiplier = 1024 * 1024
	case strings.HasSuffix(upper, "KB"):
		suffix = "KB"
		multiplier = 1024
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("size must be non-negative: %q", s)
		}
		return n, nil
	}

	numStr := strings.TrimSpace(s[:len(s)-len(suffix)])
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(numStr, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		if f < 0 {
			return 0, fmt.Errorf("size must be non-negative: %q", s)
		}
		return int64(f * float64(multiplier)), nil
	}
	if n < 0 {
		return 0, fmt.Errorf("size must be non-negative: %q", s)
	}
	return n * multiplier, nil
}
