// Package config loads oascall settings from config.toml, the environment and flags
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. OASCALL_TIMEOUT
const EnvPrefix = "OASCALL"

// Config holds every setting the CLI passes to the engine
type Config struct {
	Server           string             `mapstructure:"server"`
	Timeout          time.Duration      `mapstructure:"timeout"`
	Insecure         bool               `mapstructure:"insecure"`
	UserAgent        string             `mapstructure:"user_agent"`
	Log              LogConfig          `mapstructure:"log"`
	Credentials      []CredentialConfig `mapstructure:"credentials"`
	StrictParameters bool               `mapstructure:"strict_parameters"`
	ValidateRequests bool               `mapstructure:"validate_requests"`
	MaxBodyBytes     int64              `mapstructure:"max_body_bytes"`
}

// LogConfig selects the logger level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CredentialConfig is one configured credential. Value is used for apiKey
// and bearer schemes, Username/Password for basic and digest, and
// CertFile/KeyFile for mutualTLS.
type CredentialConfig struct {
	Scheme   string `mapstructure:"scheme"`
	Value    string `mapstructure:"value"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("user_agent", "oascall")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("validate_requests", true)
	v.SetDefault("max_body_bytes", binding.DefaultMaxBodyBytes)
}

// Init prepares v to read config.toml from path (or the working directory)
// and OASCALL_* environment variables. A missing config file is not an error.
func Init(v *viper.Viper, path string) error {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Load decodes the settings held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// BuildCredentials converts the configured entries, keeping their order
func (c *Config) BuildCredentials() (binding.Credentials, error) {
	creds := make(binding.Credentials, 0, len(c.Credentials))
	for i, entry := range c.Credentials {
		if entry.Scheme == "" {
			return nil, fmt.Errorf("credentials[%d]: scheme is required", i)
		}
		var value any
		switch {
		case entry.CertFile != "" || entry.KeyFile != "":
			value = binding.ClientCertificate{CertFile: entry.CertFile, KeyFile: entry.KeyFile}
		case entry.Username != "" || entry.Password != "":
			value = binding.BasicAuth{Username: entry.Username, Password: entry.Password}
		default:
			value = entry.Value
		}
		creds = creds.With(entry.Scheme, value)
	}
	return creds, nil
}

// ParseCredential parses a command-line "scheme=value" credential
func ParseCredential(arg string) (CredentialConfig, error) {
	scheme, value, ok := strings.Cut(arg, "=")
	if !ok || scheme == "" {
		return CredentialConfig{}, fmt.Errorf("invalid credential %q (expected scheme=value)", arg)
	}
	return CredentialConfig{Scheme: scheme, Value: value}, nil
}
