// CLI entry point for DexAtlas.
package main

import (
	"os"

	"github.com/turtacn/DexAtlas/internal/interfaces/cli"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	os.Exit(errors.ExitCodeFor(cli.Execute()))
}

//Personal.AI order the ending
