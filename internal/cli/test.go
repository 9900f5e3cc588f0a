package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cowork-labs/coedit/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Dir    string
	Filter string
}

// TestScenarioResult holds the result of one scenario.
type TestScenarioResult struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []TestScenarioResult `json:"scenarios"`
	Total     int                  `json:"total"`
	Failed    int                  `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenario files...]",
		Short: "Run conformance scenarios against the sync engine",
		Long: `Run YAML conformance scenarios against an in-process sync engine and
report pass/fail per scenario.

Scenario files are given as arguments, or discovered as *.yaml under the
--dir directory.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable scenario file, etc.)

Examples:
  coedit test ./scenarios/hello-bang.yaml
  coedit test --dir ./scenarios
  coedit test --dir ./scenarios --filter absorb`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of scenario files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name contains this substring")

	return cmd
}

func runTest(opts *TestOptions, cmd *cobra.Command, args []string) error {
	paths := args
	if opts.Dir != "" {
		found, err := filepath.Glob(filepath.Join(opts.Dir, "*.yaml"))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list scenarios", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return NewExitError(ExitCommandError, "no scenario files given; pass files or --dir")
	}

	result := TestResult{}
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		if opts.Filter != "" && !strings.Contains(scenario.Name, opts.Filter) {
			continue
		}

		run, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to run scenario %s", scenario.Name), err)
		}

		sr := TestScenarioResult{
			Name:     run.Name,
			Passed:   run.Passed(),
			Failures: run.Failures,
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if !sr.Passed {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result, opts.Verbose)
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, "scenario failures")
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult, verbose bool) error {
	w := cmd.OutOrStdout()

	for _, s := range result.Scenarios {
		status := "✓"
		if !s.Passed {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", status, s.Name)
		if !s.Passed || verbose {
			for _, f := range s.Failures {
				fmt.Fprintf(w, "    %s\n", f)
			}
		}
	}

	fmt.Fprintln(w)
	if result.Failed == 0 {
		fmt.Fprintf(w, "✓ %d scenario(s) passed\n", result.Total)
		return nil
	}
	fmt.Fprintf(w, "✗ %d of %d scenario(s) failed\n", result.Failed, result.Total)
	return NewExitError(ExitFailure, "scenario failures")
}
