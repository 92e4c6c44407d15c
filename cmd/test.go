/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/briandowns/spinner"
	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/moamenhredeen/oascall/internal/tester"
	"github.com/spf13/cobra"
)

var (
	filter           string
	tags             []string
	verbose          bool
	includeOptional  bool
	seed             int64
	testOutputFormat string
	testOutputFile   string
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test [openapi-spec-file]",
	Short: "Smoke-test the APIs",
	Long: `Call every operation with generated arguments and check each response
against the declared status codes, media types and schemas.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := loadSpec(args[0])
		exitOnError(err)

		creds, err := credentials()
		exitOnError(err)

		// Filter operations
		filteredOps := filterOperations(spec.Operations(), filter, tags)

		if len(filteredOps) == 0 {
			fmt.Println("No operations found matching the criteria")
			os.Exit(0)
		}

		gen := generator.NewGenerator()
		if cmd.Flags().Changed("seed") {
			gen = generator.NewSeededGenerator(seed)
		}
		gen.Optional = includeOptional

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Run tests
		testRunner := tester.NewTester(newExecutor(spec), gen, creds)
		var s *spinner.Spinner
		summary := testRunner.TestOperations(ctx, filteredOps, func(event tester.TestEvent) {
			switch event.Type {
			case tester.EventStarting:
				s = newSpinner(fmt.Sprintf(" [%d/%d] %s %s",
					event.Index+1, event.Total, strings.ToUpper(event.Operation.Method), event.Operation.Path))
			case tester.EventCompleted:
				stopSpinner(s)
				if testOutputFormat == "" || testOutputFile != "" {
					displayResult(*event.Result, verbose)
				}
			}
		})

		if testOutputFormat != "" {
			format, err := output.ParseFormat(testOutputFormat)
			exitOnError(err)
			exitOnError(output.ExportTestSummary(summary, format, testOutputFile))
			if testOutputFile != "" {
				fmt.Printf("\nResults exported to: %s\n", testOutputFile)
				displaySummary(summary)
			}
		} else {
			displaySummary(summary)
		}

		// Exit with error code if any tests failed
		if summary.Failed > 0 {
			os.Exit(1)
		}
	},
}

func filterOperations(operations []*models.Operation, filterStr string, tagFilters []string) []*models.Operation {
	var filtered []*models.Operation

	for _, op := range operations {
		// Filter by path pattern or operation ID
		if filterStr != "" {
			if !strings.Contains(op.Path, filterStr) && !strings.Contains(op.ID, filterStr) {
				continue
			}
		}

		// Filter by tags
		if len(tagFilters) > 0 && !slices.ContainsFunc(tagFilters, func(tag string) bool {
			return slices.Contains(op.Tags, tag)
		}) {
			continue
		}

		filtered = append(filtered, op)
	}

	return filtered
}

func displayResult(result models.TestResult, verbose bool) {
	status := green("PASS")
	switch {
	case result.Skipped:
		status = yellow("SKIP")
	case !result.Passed:
		status = red("FAIL")
	}

	fmt.Printf("%s %s %s", status, strings.ToUpper(result.Method), result.Path)
	if !verbose {
		if !result.Passed && result.Error != "" {
			fmt.Printf(" - %s", result.Error)
		}
		fmt.Println()
		return
	}

	fmt.Println()
	fmt.Printf("  Operation ID: %s\n", result.OperationID)
	if result.StatusCode != 0 {
		fmt.Printf("  Status Code: %d\n", result.StatusCode)
	}
	if result.MediaType != "" {
		fmt.Printf("  Media Type: %s\n", result.MediaType)
	}
	fmt.Printf("  Response Time: %v\n", result.ResponseTime)

	if !result.Passed {
		if result.ErrorKind != "" {
			fmt.Printf("  Failure: %s after %s\n", result.ErrorKind, result.FailedAfter)
		}
		if result.Error != "" {
			fmt.Printf("  Error: %s\n", result.Error)
		}
		if len(result.Violations) > 0 {
			fmt.Printf("  Schema Violations:\n")
			for _, v := range result.Violations {
				path := v.Path
				if path == "" {
					path = "(root)"
				}
				fmt.Printf("    - %s: %s\n", path, v.Message)
			}
		}
	}
	fmt.Println()
}

func displaySummary(summary models.TestSummary) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Test Results ==="))
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed: %s\n", green(summary.Passed))
	fmt.Printf("Failed: %s\n", red(summary.Failed))
	if summary.Skipped > 0 {
		fmt.Printf("Skipped: %s\n", yellow(summary.Skipped))
	}
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&filter, "filter", "", "Filter endpoints by path pattern or operation ID")
	testCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by OpenAPI tags (can be specified multiple times)")
	testCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	testCmd.Flags().BoolVar(&includeOptional, "optional", false, "Also send optional parameters and properties")
	testCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for reproducible generated arguments")
	testCmd.Flags().StringVarP(&testOutputFormat, "output", "o", "", "Output format: json, yaml, csv")
	testCmd.Flags().StringVar(&testOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
