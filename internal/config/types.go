package config

// Config is the top-level configuration type parsed from a sentinel.toml
// file. It holds a map of named profiles keyed by profile name. Profile
// names are case-sensitive. The special name "default" is the built-in
// fallback profile.
type Config struct {
	// Profile maps profile names to their configuration. Access via
	// cfg.Profile["default"] or cfg.Profile["ci"].
	Profile map[string]*Profile `toml:"profile"`
}

// Profile defines all scan settings for a single named profile. Fields left
// at their zero value are considered unset and are filled in by the
// resolution pipeline in resolver.go. The Extends field enables profile
// inheritance.
type Profile struct {
	// Extends is the name of a parent profile to inherit from. When set,
	// all unset fields in this profile are filled from the named parent.
	Extends *string `toml:"extends"`

	// MaxFileSize is the maximum file size in bytes eligible for scanning.
	MaxFileSize int64 `toml:"max_file_size"`

	// Mode selects sequential, parallel, or auto-sized dispatch.
	Mode string `toml:"mode"`

	// MaxWorkers is the user ceiling on worker count; 0 means unbounded by
	// the user (still bounded by CPUPercentage).
	MaxWorkers int `toml:"max_workers"`

	// CPUPercentage is the fraction (0, 1] of available cores usable by the
	// resource ceiling computation.
	CPUPercentage float64 `toml:"cpu_percentage"`

	// AutoThreshold is the file count above which Auto mode selects the
	// scaled worker pool instead of running sequentially.
	AutoThreshold int `toml:"auto_threshold"`

	// EntropyEnabled toggles the entropy validation stage entirely.
	EntropyEnabled bool `toml:"entropy_enabled"`

	// EntropyThreshold is the minimum randomness probability applied when a
	// pattern's own entropy requirement does not override it.
	EntropyThreshold float64 `toml:"entropy_threshold"`

	// Ignore is the list of glob patterns for files and directories to skip
	// during discovery, combined with the built-in defaults.
	Ignore []string `toml:"ignore"`

	// IgnoreComments is the set of additional plain-substring allow
	// directives honored alongside the built-in guardy: directives.
	IgnoreComments []string `toml:"ignore_comments"`

	// FollowSymlinks enables symlink traversal during discovery.
	FollowSymlinks bool `toml:"follow_symlinks"`

	// GitTrackedOnly restricts the walk to `git ls-files` output.
	GitTrackedOnly bool `toml:"git_tracked_only"`

	// FailOnFindings makes the scan command exit non-zero when matches are
	// found, instead of always exiting zero on a clean run.
	FailOnFindings bool `toml:"fail_on_findings"`

	// Format selects the result rendering: "text" or "json".
	Format string `toml:"format"`
}
