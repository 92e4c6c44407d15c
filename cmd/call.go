/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/output"
	"github.com/spf13/cobra"
)

var (
	callParams      []string
	callData        string
	callContentType string
	callOutput      string
	callHeaders     bool
	callDryRun      bool
)

// callCmd invokes a single operation
var callCmd = &cobra.Command{
	Use:   "call [openapi-spec-file] [operation-id]",
	Short: "Call a single operation",
	Long: `Call one operation by its operationId and print the validated response.

Examples:
  # Path and query parameters
  oascall call petstore.yaml showPetById -p petId=42

  # Request body from a file, authenticated with an API key
  oascall call petstore.yaml createPets -d @pet.json --auth apiKeyAuth=secret

  # Show the request that would be sent
  oascall call petstore.yaml listPets -p limit=10 --dry-run`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := loadSpec(args[0])
		exitOnError(err)

		format, err := output.ParseFormat(callOutput)
		exitOnError(err)

		creds, err := credentials()
		exitOnError(err)

		params, err := parseParams(callParams)
		exitOnError(err)

		body, err := parseData(callData)
		exitOnError(err)

		executor := newExecutor(spec)
		op, err := executor.Operation(args[1])
		exitOnError(err)

		call := binding.Call{
			Credentials: creds,
			Parameters:  params,
			Body:        body,
			ContentType: callContentType,
		}

		if callDryRun {
			req, err := executor.Bind(op, call)
			exitOnError(err)
			printRequest(req)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := newSpinner(fmt.Sprintf(" %s %s", strings.ToUpper(op.Method), op.Path))
		result, err := executor.Call(ctx, op, call)
		stopSpinner(s)
		if err != nil {
			if kind := binding.KindOf(err); kind != "" {
				fmt.Fprintf(os.Stderr, "%s %s\n", red(kind), faint(retryHint(err)))
			}
			exitOnError(err)
		}

		exitOnError(output.WriteResult(os.Stdout, result, format, callHeaders))
	},
}

// parseParams turns repeated name=value flags into call parameters.
// A name given more than once becomes a list.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", arg)
		}
		switch existing := params[name].(type) {
		case nil:
			params[name] = value
		case string:
			params[name] = []string{existing, value}
		case []string:
			params[name] = append(existing, value)
		}
	}
	return params, nil
}

// parseData decodes a JSON body given inline or as @file
func parseData(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	raw := []byte(data)
	if path, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}
	body, err := binding.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("request body is not valid JSON: %w", err)
	}
	return body, nil
}

func retryHint(err error) string {
	if binding.IsRetryable(err) {
		return "(retryable)"
	}
	return "(not retryable)"
}

func printRequest(req *binding.BoundRequest) {
	u, err := req.URL(req.BaseURL)
	exitOnError(err)

	fmt.Printf("%s %s\n", cyan(req.Method), u)
	for name, values := range req.Header {
		fmt.Printf("%s: %s\n", name, strings.Join(values, ", "))
	}
	for _, c := range req.Cookies {
		fmt.Printf("Cookie: %s\n", c)
	}
	switch {
	case req.Basic != nil:
		fmt.Printf("%s basic auth as %s\n", faint("#"), req.Basic.Username)
	case req.Digest != nil:
		fmt.Printf("%s digest auth as %s\n", faint("#"), req.Digest.Username)
	case req.Certificate != nil:
		fmt.Printf("%s client certificate %s\n", faint("#"), req.Certificate.CertFile)
	}
	if len(req.Body) > 0 {
		fmt.Println()
		fmt.Println(string(req.Body))
	}
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringArrayVarP(&callParams, "param", "p", nil, "Parameter as name=value (repeatable)")
	callCmd.Flags().StringVarP(&callData, "data", "d", "", "JSON request body, or @file to read it from a file")
	callCmd.Flags().StringVar(&callContentType, "content-type", "", "Request body media type (default application/json)")
	callCmd.Flags().StringVarP(&callOutput, "output", "o", "json", "Output format: json, yaml")
	callCmd.Flags().BoolVarP(&callHeaders, "include", "i", false, "Include response headers in the output")
	callCmd.Flags().BoolVar(&callDryRun, "dry-run", false, "Bind the request and print it without sending")
}
