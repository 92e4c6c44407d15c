/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/spf13/cobra"
)

// operationsCmd lists the invocable operations of a document
var operationsCmd = &cobra.Command{
	Use:     "operations [openapi-spec-file]",
	Aliases: []string{"ops"},
	Short:   "List the operations of an OpenAPI document",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := loadSpec(args[0])
		exitOnError(err)

		fmt.Printf("%s %s\n", white(spec.Title), faint(spec.Version))
		for _, server := range spec.Servers {
			fmt.Printf("  server: %s\n", server)
		}
		fmt.Println()

		for _, op := range filterOperations(spec.Operations(), filter, tags) {
			line := fmt.Sprintf("%-7s %-40s %s", strings.ToUpper(op.Method), op.Path, cyan(op.ID))
			if op.Deprecated {
				line += " " + yellow("deprecated")
			}
			fmt.Println(line)

			if verbose {
				describeOperation(spec, op)
			}
		}
	},
}

func describeOperation(spec *models.Spec, op *models.Operation) {
	if op.Summary != "" {
		fmt.Printf("        %s\n", faint(op.Summary))
	}

	accepted := op.AcceptedParameters()
	for pair := accepted.First(); pair != nil; pair = pair.Next() {
		p := pair.Value()
		required := ""
		if p.Required {
			required = " (required)"
		}
		fmt.Printf("        param %s in %s%s\n", p.Name, p.In, required)
	}

	if op.RequestBody != nil {
		fmt.Printf("        body %s\n", strings.Join(op.RequestBody.ContentTypes(), ", "))
	}

	security := op.EffectiveSecurity(spec)
	if len(security) > 0 {
		names := make([]string, len(security))
		for i, alt := range security {
			names[i] = alt.Name
		}
		fmt.Printf("        security %s\n", strings.Join(names, " | "))
	}
	fmt.Printf("        responses %s\n", strings.Join(op.StatusCodes(), ", "))
}

func init() {
	rootCmd.AddCommand(operationsCmd)

	operationsCmd.Flags().StringVar(&filter, "filter", "", "Filter endpoints by path pattern or operation ID")
	operationsCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by OpenAPI tags")
	operationsCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show parameters, body and security")
}
