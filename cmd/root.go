/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/config"
	"github.com/moamenhredeen/oascall/internal/logging"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/parser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v       = viper.New()
	cfgFile string
	auth    []string

	// populated by the root PersistentPreRunE
	cfg    *config.Config
	logger = logging.Discard()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oascall",
	Short: "Call REST APIs through their OpenAPI Specification",
	Long: `oascall invokes the operations of an OpenAPI 3.x or Swagger 2.0 document.

Arguments are bound to the operation's declared parameters, security schemes
and request body, and every response is checked against the declared
responses and schemas.

You can call a single operation, smoke-test every operation or benchmark them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(v, cfgFile); err != nil {
			return err
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./config.toml)")
	flags.String("server", "", "Override server URL from OpenAPI spec")
	flags.Duration("timeout", 0, "Request timeout (default 30s)")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.Bool("strict", false, "Reject parameters the operation does not declare")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")
	flags.StringArrayVar(&auth, "auth", nil, "Credential as scheme=value, e.g. apiKeyAuth=secret or basicAuth=user:pass (repeatable)")

	for key, flag := range map[string]string{
		"server":            "server",
		"timeout":           "timeout",
		"insecure":          "insecure",
		"strict_parameters": "strict",
		"log.level":         "log-level",
		"log.format":        "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// loadSpec parses the OpenAPI document at path
func loadSpec(path string) (*models.Spec, error) {
	spec, err := parser.New(logger).ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("error parsing OpenAPI file: %w", err)
	}
	return spec, nil
}

// credentials returns --auth values followed by configured credentials
func credentials() (binding.Credentials, error) {
	var creds binding.Credentials
	for _, arg := range auth {
		entry, err := config.ParseCredential(arg)
		if err != nil {
			return nil, err
		}
		creds = creds.With(entry.Scheme, entry.Value)
	}
	configured, err := cfg.BuildCredentials()
	if err != nil {
		return nil, err
	}
	return append(creds, configured...), nil
}

// executorOptions translates the loaded configuration into executor options
func executorOptions(spec *models.Spec) []binding.Option {
	opts := []binding.Option{
		binding.WithLogger(logger),
		binding.WithStrictParameters(cfg.StrictParameters),
		binding.WithRequestValidation(cfg.ValidateRequests),
		binding.WithUserAgent(cfg.UserAgent),
	}
	if cfg.Server != "" {
		opts = append(opts, binding.WithBaseURL(cfg.Server))
	} else if len(spec.Servers) == 0 {
		opts = append(opts, binding.WithBaseURL("http://localhost"))
	}
	return opts
}

// newExecutor builds an executor sending over net/http
func newExecutor(spec *models.Spec) *binding.Executor {
	transport := binding.NewHTTPTransport(
		&http.Client{Timeout: cfg.Timeout},
		binding.WithMaxBodyBytes(cfg.MaxBodyBytes),
		binding.WithInsecureSkipVerify(cfg.Insecure),
	)
	return binding.NewExecutor(spec, transport, executorOptions(spec)...)
}

// exitOnError prints err and exits with status 1
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
	os.Exit(1)
}
