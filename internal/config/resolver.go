package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/providers/confmap"
	koanf "github.com/knadh/koanf/v2"

	"github.com/sentinelscan/sentinel/internal/secrets"
)

// ResolveOptions configures the multi-source configuration resolution.
type ResolveOptions struct {
	// ProfileName selects a named profile from loaded configs. If empty,
	// the SENTINEL_PROFILE env var is checked, then "default" is used.
	ProfileName string

	// TargetDir is the directory to search for sentinel.toml. Defaults to
	// "." if empty.
	TargetDir string

	// GlobalConfigPath overrides the default
	// ~/.config/sentinel/config.toml. Useful for testing.
	GlobalConfigPath string

	// CLIFlags holds explicit CLI flag overrides (highest precedence). Keys
	// are flat Profile field names: "mode", "max_workers", etc.
	CLIFlags map[string]any
}

// ResolvedConfig is the result of multi-source configuration resolution.
type ResolvedConfig struct {
	// Scanner is the final merged scanner config ready for use by the core.
	Scanner secrets.ScannerConfig

	// Sources tracks which layer each field value came from.
	Sources SourceMap

	// ProfileName is the name of the resolved profile.
	ProfileName string
}

// Resolve runs the 5-layer configuration resolution pipeline:
//  1. Built-in defaults
//  2. Global config (~/.config/sentinel/config.toml)
//  3. Repository config (sentinel.toml in TargetDir)
//  4. Environment variables (SENTINEL_* prefix)
//  5. CLI flags (highest precedence)
//
// Missing config files are silently ignored. Invalid files return errors.
// Named profiles not found in any loaded config return an error listing
// available profiles.
func Resolve(opts ResolveOptions) (*ResolvedConfig, error) {
	profileName := opts.ProfileName
	if profileName == "" {
		if v := os.Getenv(EnvProfile); v != "" {
			profileName = v
		} else {
			profileName = "default"
		}
	}

	slog.Debug("resolving config", "profile", profileName, "targetDir", opts.TargetDir)

	k := koanf.New(".")
	sources := make(SourceMap)

	defaultProfile := DefaultProfile()
	if err := loadLayer(k, profileToFlatMap(defaultProfile), sources, SourceDefault); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	profileFound := false

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath = filepath.Join(home, ".config", "sentinel", "config.toml")
		}
	}

	if globalPath != "" {
		found, err := loadFileLayer(k, globalPath, profileName, sources, SourceGlobal)
		if err != nil {
			return nil, err
		}
		if found {
			profileFound = true
		}
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = "."
	}
	repoConfigPath := filepath.Join(targetDir, "sentinel.toml")
	found, err := loadFileLayer(k, repoConfigPath, profileName, sources, SourceRepo)
	if err != nil {
		return nil, err
	}
	if found {
		profileFound = true
	}

	if profileName != "default" && !profileFound {
		return nil, fmt.Errorf("profile %q not found in any config file", profileName)
	}

	envMap := buildEnvMap()
	if len(envMap) > 0 {
		if err := loadLayer(k, envMap, sources, SourceEnv); err != nil {
			return nil, fmt.Errorf("loading env vars: %w", err)
		}
	}

	if len(opts.CLIFlags) > 0 {
		if err := loadLayer(k, opts.CLIFlags, sources, SourceFlag); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	finalProfile := flatMapToProfile(k)

	slog.Debug("config resolved",
		"profile", profileName,
		"mode", finalProfile.Mode,
		"maxWorkers", finalProfile.MaxWorkers,
	)

	return &ResolvedConfig{
		Scanner:     profileToScannerConfig(finalProfile),
		Sources:     sources,
		ProfileName: profileName,
	}, nil
}

// loadFileLayer loads a named profile from a TOML config file, merges its
// explicitly-set fields into k, and records source attribution. Missing
// files and missing profiles are silently skipped (returns false, nil).
func loadFileLayer(k *koanf.Koanf, path, profileName string, sources SourceMap, src Source) (bool, error) {
	flat, err := extractProfileFlat(path, profileName)
	if err != nil {
		return false, fmt.Errorf("loading config %s: %w", path, err)
	}
	if flat == nil {
		return false, nil
	}

	slog.Debug("loading profile from config", "profile", profileName, "path", path, "source", src.String())

	if err := loadLayer(k, flat, sources, src); err != nil {
		return false, err
	}
	return true, nil
}

// extractProfileFlat parses a TOML config file into a raw Go map and
// returns a flat koanf-compatible map containing only the fields that are
// explicitly present in the TOML for the given profile. Returns nil if the
// file does not exist or the profile is not found in the file.
func extractProfileFlat(path, profileName string) (map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("config file not found, skipping", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	profilesRaw, ok := raw["profile"].(map[string]interface{})
	if !ok {
		slog.Debug("no [profile] section in config", "path", path)
		return nil, nil
	}

	profileRaw, ok := profilesRaw[profileName].(map[string]interface{})
	if !ok {
		available := make([]string, 0, len(profilesRaw))
		for name := range profilesRaw {
			available = append(available, name)
		}
		sort.Strings(available)
		slog.Debug("profile not found in config", "profile", profileName, "path", path, "available", strings.Join(available, ", "))
		return nil, nil
	}

	return flattenProfileRaw(profileRaw), nil
}

// flattenProfileRaw converts a raw TOML profile map (as decoded by
// BurntSushi/toml into map[string]interface{}) into a flat koanf-compatible
// map. Only fields explicitly present in the raw map are included.
func flattenProfileRaw(raw map[string]interface{}) map[string]any {
	flat := make(map[string]any)

	for _, key := range []string{"mode", "format"} {
		if v, ok := raw[key]; ok {
			flat[key] = v
		}
	}

	for _, key := range []string{"max_file_size", "max_workers", "auto_threshold"} {
		if v, ok := raw[key]; ok {
			switch n := v.(type) {
			case int64:
				flat[key] = int(n)
			case int:
				flat[key] = n
			default:
				flat[key] = v
			}
		}
	}

	for _, key := range []string{"cpu_percentage", "entropy_threshold"} {
		if v, ok := raw[key]; ok {
			switch n := v.(type) {
			case float64:
				flat[key] = n
			default:
				flat[key] = v
			}
		}
	}

	for _, key := range []string{"entropy_enabled", "follow_symlinks", "git_tracked_only", "fail_on_findings"} {
		if v, ok := raw[key]; ok {
			flat[key] = v
		}
	}

	for _, key := range []string{"ignore", "ignore_comments"} {
		if v, ok := raw[key]; ok {
			flat[key] = rawToStringSlice(v)
		}
	}

	return flat
}

// rawToStringSlice converts a raw TOML array value ([]interface{}) into
// []string. Returns nil for unrecognized types.
func rawToStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		result := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}

// loadLayer merges a flat map into k and marks every key in the map as
// originating from src.
func loadLayer(k *koanf.Koanf, m map[string]any, sources SourceMap, src Source) error {
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return fmt.Errorf("merge layer %s: %w", src.String(), err)
	}
	for key := range m {
		sources[key] = src
	}
	return nil
}

// profileToFlatMap converts a Profile to a flat map for koanf's confmap
// provider. All fields are included (used for the defaults layer where
// every field has an authoritative default value).
func profileToFlatMap(p *Profile) map[string]any {
	return map[string]any{
		"max_file_size":     p.MaxFileSize,
		"mode":              p.Mode,
		"max_workers":       p.MaxWorkers,
		"cpu_percentage":    p.CPUPercentage,
		"auto_threshold":    p.AutoThreshold,
		"entropy_enabled":   p.EntropyEnabled,
		"entropy_threshold": p.EntropyThreshold,
		"ignore":            p.Ignore,
		"ignore_comments":   p.IgnoreComments,
		"follow_symlinks":   p.FollowSymlinks,
		"git_tracked_only":  p.GitTrackedOnly,
		"fail_on_findings":  p.FailOnFindings,
		"format":            p.Format,
	}
}

// flatMapToProfile converts the current koanf state into a Profile struct.
func flatMapToProfile(k *koanf.Koanf) *Profile {
	return &Profile{
		MaxFileSize:      k.Int64("max_file_size"),
		Mode:             k.String("mode"),
		MaxWorkers:       k.Int("max_workers"),
		CPUPercentage:    k.Float64("cpu_percentage"),
		AutoThreshold:    k.Int("auto_threshold"),
		EntropyEnabled:   k.Bool("entropy_enabled"),
		EntropyThreshold: k.Float64("entropy_threshold"),
		Ignore:           k.Strings("ignore"),
		IgnoreComments:   k.Strings("ignore_comments"),
		FollowSymlinks:   k.Bool("follow_symlinks"),
		GitTrackedOnly:   k.Bool("git_tracked_only"),
		FailOnFindings:   k.Bool("fail_on_findings"),
		Format:           k.String("format"),
	}
}

// profileToScannerConfig converts a resolved Profile into the
// secrets.ScannerConfig value the core expects.
func profileToScannerConfig(p *Profile) secrets.ScannerConfig {
	return secrets.ScannerConfig{
		MaxFileSize:        p.MaxFileSize,
		StreamingThreshold: 8 * p.MaxFileSize,
		IgnoreGlobs:        p.Ignore,
		EntropyEnabled:     p.EntropyEnabled,
		EntropyThreshold:   p.EntropyThreshold,
		Mode:               secrets.ExecutionMode(p.Mode),
		MaxWorkers:         p.MaxWorkers,
		CPUPercentage:      p.CPUPercentage,
		AutoThreshold:      p.AutoThreshold,
		IgnoreComments:     p.IgnoreComments,
		FollowSymlinks:     p.FollowSymlinks,
		GitTrackedOnly:     p.GitTrackedOnly,
	}
}

// FlagValuesToMap converts parsed CLI flags into the flat map Resolve
// expects as ResolveOptions.CLIFlags, including only values the user
// explicitly set via cmd.Flags().Changed.
func FlagValuesToMap(fv *FlagValues, cmd changedChecker) map[string]any {
	m := make(map[string]any)

	if cmd.Changed("mode") {
		m["mode"] = fv.Mode
	}
	if cmd.Changed("max-workers") {
		m["max_workers"] = fv.MaxWorkers
	}
	if cmd.Changed("cpu-percentage") {
		m["cpu_percentage"] = fv.CPUPercentage
	}
	if cmd.Changed("max-file-size") {
		m["max_file_size"] = fv.MaxFileSize
	}
	if cmd.Changed("no-entropy") {
		m["entropy_enabled"] = !fv.NoEntropy
	}
	if cmd.Changed("entropy-threshold") {
		m["entropy_threshold"] = fv.EntropyThresh
	}
	if cmd.Changed("exclude") {
		m["ignore"] = fv.Excludes
	}
	if cmd.Changed("ignore-comment") {
		m["ignore_comments"] = fv.IgnoreComments
	}
	if cmd.Changed("follow-symlinks") {
		m["follow_symlinks"] = fv.FollowSymlinks
	}
	if cmd.Changed("git-tracked-only") {
		m["git_tracked_only"] = fv.GitTrackedOnly
	}
	if cmd.Changed("fail-on-findings") {
		m["fail_on_findings"] = fv.FailOnFindings
	}
	if cmd.Changed("format") {
		m["format"] = fv.Format
	}

	return m
}

// changedChecker is the subset of *pflag.FlagSet.Changed a caller needs;
// satisfied by cmd.Flags().
type changedChecker interface {
	Changed(name string) bool
}
