package config

// DefaultProfile returns a new Profile populated with the built-in defaults,
// mirroring secrets.DefaultScannerConfig. This profile is used as the base
// when no sentinel.toml is present or when a named profile omits fields.
//
// Callers receive a fresh copy each time; mutating the returned value does
// not affect subsequent calls.
func DefaultProfile() *Profile {
	return &Profile{
		MaxFileSize:      1_048_576,
		Mode:             "auto",
		MaxWorkers:       0,
		CPUPercentage:    1.0,
		AutoThreshold:    10,
		EntropyEnabled:   true,
		EntropyThreshold: 1e-5,
		Ignore:           append([]string(nil), defaultIgnoreGlobs...),
		IgnoreComments:   nil,
		FollowSymlinks:   false,
		GitTrackedOnly:   false,
		FailOnFindings:   false,
		Format:           "text",
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
