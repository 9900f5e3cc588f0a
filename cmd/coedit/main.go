// Package main is the coedit CLI entry point.
//
// Start the server:
//
//	coedit serve --config coedit.yaml
//
// Inspect and verify the archive:
//
//	coedit log --db coedit.db --doc <id>
//	coedit replay --db coedit.db
//
// Run conformance scenarios:
//
//	coedit test --dir ./scenarios
package main

import (
	"fmt"
	"os"

	"github.com/cowork-labs/coedit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
