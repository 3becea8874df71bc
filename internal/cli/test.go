package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run replay scenarios",
		Long: `Run scenario files against fresh in-memory state stores.

<scenarios> is a scenario file or a directory of them. Each scenario
replays its events and checks its assertions. When a golden file exists
at ../golden/<scenario name>.golden relative to the scenario file, the
run summary must match it as well.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  eventstate test ./testdata/scenarios
  eventstate test ./testdata/scenarios --filter "user_task*"
  eventstate test ./testdata/scenarios --update
  eventstate test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	paths, err := harness.ScenarioPaths(path)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path), err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	if len(paths) == 0 {
		if out.JSON() {
			return out.Success(&harness.SuiteResult{Scenarios: []harness.ScenarioResult{}})
		}
		out.Printf("No scenarios found.\n")
		return nil
	}

	suite, err := harness.RunSuite(ctx, paths, goldenCheck(opts.Update))
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}

	if !suite.Pass() {
		msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
		if out.JSON() {
			if err := out.Failure(suite, CodeTestFailed, msg); err != nil {
				return err
			}
		} else {
			printSuite(out, suite)
		}
		return NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		return out.Success(suite)
	}
	printSuite(out, suite)
	out.Printf("✓ All scenarios passed\n")
	return nil
}

// filterScenarios keeps the paths whose base name, without extension,
// matches pattern.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func printSuite(out *OutputFormatter, suite *harness.SuiteResult) {
	for _, s := range suite.Scenarios {
		name := s.Scenario
		if name == "" {
			name = filepath.Base(s.Path)
		}
		if s.Pass {
			out.Printf("✓ %s\n", name)
			continue
		}
		out.Printf("✗ %s\n", name)
		for _, e := range s.Errors {
			out.Printf("  %s\n", e)
		}
	}
	out.Printf("\nTest Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
}

// goldenFilePath returns the golden file of a scenario: golden/ next to
// the directory holding the scenario file.
func goldenFilePath(scenarioFile, scenarioName string) string {
	root := filepath.Dir(filepath.Dir(scenarioFile))
	return filepath.Join(root, "golden", scenarioName+".golden")
}

// goldenCheck compares each run with its golden file, or rewrites the file
// when update is set. Scenarios without a golden file are not compared.
func goldenCheck(update bool) harness.Check {
	return func(path string, scenario *harness.Scenario, result *harness.Result) error {
		current, err := harness.NewSnapshot(scenario.Name, result).Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		goldenPath := goldenFilePath(path, scenario.Name)
		if update {
			if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
				return fmt.Errorf("failed to create golden directory: %w", err)
			}
			if err := os.WriteFile(goldenPath, current, 0644); err != nil {
				return fmt.Errorf("failed to write golden file: %w", err)
			}
			return nil
		}

		golden, err := os.ReadFile(goldenPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read golden file: %w", err)
		}
		if !bytes.Equal(golden, current) {
			return fmt.Errorf("golden file mismatch: %s (run with --update to regenerate)", goldenPath)
		}
		return nil
	}
}
