// Package config loads CLI configuration from an optional config file and
// RESOLVR_ environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/state"
	"github.com/spf13/viper"
)

const (
	envPrefix = "RESOLVR"

	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultProvider        = "file"
	defaultApprovalsSource = "file"
	defaultKeyPairPrefix   = "/resolvr/accounts"
	defaultCacheTTL        = 5 * time.Minute
	defaultParallelism     = 10
	defaultTimeout         = 2 * time.Minute
	defaultMaxRetries      = 3
)

// Config is the resolvr configuration file.
type Config struct {
	Log       LogConfig           `mapstructure:"log"`
	Inventory InventoryConfig     `mapstructure:"inventory"`
	Approvals ApprovalsConfig     `mapstructure:"approvals"`
	Engine    EngineConfig        `mapstructure:"engine"`
	State     state.BackendConfig `mapstructure:"state"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// InventoryConfig selects where networks, subnets, images, key pairs and
// certificates are read from.
type InventoryConfig struct {
	Provider string `mapstructure:"provider"` // "file" or "aws"
	File     string `mapstructure:"file"`
	// KeyPairPrefix is the SSM path holding "<prefix>/<account>/default-key-pair".
	KeyPairPrefix string          `mapstructure:"keyPairPrefix"`
	CacheTTL      time.Duration   `mapstructure:"cacheTTL"`
	Accounts      []AccountConfig `mapstructure:"accounts"`
}

// AccountConfig maps an account name used in documents to AWS credentials.
type AccountConfig struct {
	Name    string   `mapstructure:"name"`
	Profile string   `mapstructure:"profile"`
	Regions []string `mapstructure:"regions"`
}

type ApprovalsConfig struct {
	Source  string `mapstructure:"source"` // "file" or "dynamodb"
	Table   string `mapstructure:"table"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// EngineConfig tunes concurrency, timeouts and retries of resolution.
type EngineConfig struct {
	Parallelism int           `mapstructure:"parallelism"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"maxRetries"`
}

// Load reads and validates configuration. See Read.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Read reads configuration without validating it. An empty path searches for resolvr.yaml or
// resolvr.json in the working directory and $HOME/.config/resolvr; a
// missing file there is not an error. Environment variables override file
// values, e.g. RESOLVR_ENGINE_PARALLELISM=4.
func Read(path string) (*Config, error) {
	v := viper.New()
	setViperDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
		}
	} else {
		v.SetConfigName("resolvr")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/resolvr")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// setViperDefaults registers every key so that AutomaticEnv can override
// keys that are absent from the config file.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("inventory.provider", defaultProvider)
	v.SetDefault("inventory.file", "")
	v.SetDefault("inventory.keyPairPrefix", defaultKeyPairPrefix)
	v.SetDefault("inventory.cacheTTL", defaultCacheTTL)
	v.SetDefault("approvals.source", defaultApprovalsSource)
	v.SetDefault("approvals.table", "")
	v.SetDefault("approvals.region", "")
	v.SetDefault("approvals.profile", "")
	v.SetDefault("engine.parallelism", defaultParallelism)
	v.SetDefault("engine.timeout", defaultTimeout)
	v.SetDefault("engine.maxRetries", defaultMaxRetries)
	v.SetDefault("state.type", "local")
}

// SetDefaults fills values a config built by hand may leave empty.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Inventory.Provider == "" {
		c.Inventory.Provider = defaultProvider
	}
	if c.Inventory.KeyPairPrefix == "" {
		c.Inventory.KeyPairPrefix = defaultKeyPairPrefix
	}
	if c.Inventory.CacheTTL == 0 {
		c.Inventory.CacheTTL = defaultCacheTTL
	}
	if c.Approvals.Source == "" {
		c.Approvals.Source = defaultApprovalsSource
	}
	if c.Engine.Parallelism == 0 {
		c.Engine.Parallelism = defaultParallelism
	}
	if c.Engine.Timeout == 0 {
		c.Engine.Timeout = defaultTimeout
	}
	if c.State.Type == "" {
		c.State.Type = "local"
	}
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	switch c.Inventory.Provider {
	case "file":
		if c.Inventory.File == "" {
			errs = append(errs, fmt.Errorf("inventory.file is required for the file provider"))
		}
	case "aws":
		if len(c.Inventory.Accounts) == 0 {
			errs = append(errs, fmt.Errorf("inventory.accounts is required for the aws provider"))
		}
		for i, a := range c.Inventory.Accounts {
			if a.Name == "" {
				errs = append(errs, fmt.Errorf("inventory.accounts[%d].name is required", i))
			}
			if len(a.Regions) == 0 {
				errs = append(errs, fmt.Errorf("inventory.accounts[%d].regions is required", i))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown inventory provider %q", c.Inventory.Provider))
	}
	if c.Inventory.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("inventory.cacheTTL must not be negative"))
	}

	switch c.Approvals.Source {
	case "file":
		if c.Inventory.Provider != "file" {
			errs = append(errs, fmt.Errorf("file approvals need the file inventory provider"))
		}
	case "dynamodb":
		if c.Approvals.Table == "" {
			errs = append(errs, fmt.Errorf("approvals.table is required for the dynamodb source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown approvals source %q", c.Approvals.Source))
	}

	if c.Engine.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("engine.parallelism must be at least 1"))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must be positive"))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("engine.maxRetries must not be negative"))
	}

	switch c.State.Type {
	case "local":
	case "s3":
		if c.State.Config["bucket"] == "" {
			errs = append(errs, fmt.Errorf("state.config.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Type))
	}
	return errors.Join(errs...)
}

// Account returns the account configuration for a name.
func (c *Config) Account(name string) (AccountConfig, bool) {
	for _, a := range c.Inventory.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return AccountConfig{}, false
}
