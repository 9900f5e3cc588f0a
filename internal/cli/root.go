package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// NewRootCommand builds the coedit command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "coedit",
		Short: "coedit - collaborative text editing server",
		Long: "A collaborative plain-text editing server built on operational transformation, " +
			"with an event-sourced revision log and a SQLite archive.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(opts.Format)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	for _, sub := range []*cobra.Command{
		NewServeCommand(opts),
		NewReplayCommand(opts),
		NewLogCommand(opts),
		NewTestCommand(opts),
	} {
		cmd.AddCommand(sub)
	}

	return cmd
}

// validateFormat rejects anything but the two supported output formats.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be text or json", format)
	}
}
