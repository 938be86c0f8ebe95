package main

import (
	"fmt"
	"os"

	"github.com/safeops/postureboard/pkg/cmd"
	"github.com/safeops/postureboard/pkg/postureboard"
)

var (
	// These variables are populated by GoReleaser via ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"

	buildInfo = postureboard.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
)

// main is the entrypoint of the postureboard executable command.
func main() {
	if err := cmd.Run(buildInfo, os.Args, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
