// Command ragescanner scans IPv4 ranges from the terminal or over HTTP.
package main

import "github.com/anstrom/ragescanner/cmd/cli"

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
