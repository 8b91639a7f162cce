package config

import (
	"os"
	"strconv"
)

// Environment variable name constants for SENTINEL_ prefixed overrides.
const (
	// EnvProfile selects the named profile to activate.
	EnvProfile = "SENTINEL_PROFILE"
	// EnvMode overrides the dispatcher execution mode.
	EnvMode = "SENTINEL_MODE"
	// EnvMaxWorkers overrides the worker count ceiling.
	EnvMaxWorkers = "SENTINEL_MAX_WORKERS"
	// EnvCPUPercentage overrides the resource-ceiling CPU fraction.
	EnvCPUPercentage = "SENTINEL_CPU_PERCENTAGE"
	// EnvEntropyThreshold overrides the default entropy probability threshold.
	EnvEntropyThreshold = "SENTINEL_ENTROPY_THRESHOLD"
	// EnvFormat overrides the result rendering format.
	EnvFormat = "SENTINEL_FORMAT"
	// EnvLogFormat overrides the log output format (not a profile field).
	EnvLogFormat = "SENTINEL_LOG_FORMAT"
	// EnvFailOnFindings overrides the fail-on-findings flag.
	EnvFailOnFindings = "SENTINEL_FAIL_ON_FINDINGS"
)

// buildEnvMap reads SENTINEL_* environment variables and returns a flat map
// suitable for use with a koanf confmap provider. Only non-empty env vars
// that parse successfully are included. Invalid numeric/boolean values are
// silently skipped so that a bad env var does not block the entire
// resolution pipeline.
func buildEnvMap() map[string]any {
	m := make(map[string]any)

	if v := os.Getenv(EnvMode); v != "" {
		m["mode"] = v
	}
	if v := os.Getenv(EnvMaxWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m["max_workers"] = n
		}
	}
	if v := os.Getenv(EnvCPUPercentage); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m["cpu_percentage"] = f
		}
	}
	if v := os.Getenv(EnvEntropyThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			m["entropy_threshold"] = f
		}
	}
	if v := os.Getenv(EnvFormat); v != "" {
		m["format"] = v
	}
	if v := os.Getenv(EnvFailOnFindings); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m["fail_on_findings"] = b
		}
	}

	return m
}
