// Package main is the entry point for the sentinelctl CLI tool.
package main

import (
	"os"

	"github.com/sentinelscan/sentinel/internal/buildinfo"
	"github.com/sentinelscan/sentinel/internal/cli"
)

// Build-time metadata injected via ldflags; see internal/buildinfo.
var (
	version   = "dev"
	commit    = "none"
	date      = "unknown"
	goVersion = "unknown"
)

func init() {
	buildinfo.Version = version
	buildinfo.Commit = commit
	buildinfo.Date = date
	buildinfo.GoVersion = goVersion
}

func main() {
	os.Exit(cli.Execute())
}
