package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/magefile/mage/sh"
	"github.com/spf13/cobra"
)

const gotestsum = "gotest.tools/gotestsum@v1.12.0"

func gotestsumArgs(pkgs []string) []string {
	args := []string{"run", gotestsum, "--no-summary=skipped", "--format", "short", "--"}
	return append(args, pkgs...)
}

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [packages...]",
		Short: "Run unit tests",
		Long:  "Run unit tests of the whole module with a junit report, or of the given packages only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := test.Test(); err != nil {
					return fmt.Errorf("failed to run tests: %w", err)
				}
				return nil
			}
			if err := sh.RunV("go", gotestsumArgs(args)...); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run golangci-lint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

// IntegrationTestCmd runs the tests with TEST_INTEGRATION_ENABLED set, which
// enables tests talking to a real adapter.
func IntegrationTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integration-test",
		Short: "Run tests including the ones needing an attached sensor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Integ(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
}

func smokeArgs(count int) []string {
	return []string{"run", "./cmd/sensors", "am2315", "read", "--adapter", "sim", "-n", fmt.Sprint(count), "--interval", "10ms"}
}

// SmokeCmd runs the cli end to end against the simulated sensor.
func SmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Read the simulated sensor through the sensors cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if err := sh.RunV("go", smokeArgs(count)...); err != nil {
				return fmt.Errorf("smoke test failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 3, "number of measurements")
	return cmd
}
