package cli

import (
	"fmt"

	"github.com/picklr-io/resolvr/internal/config"
	"github.com/picklr-io/resolvr/internal/logging"
	"github.com/picklr-io/resolvr/internal/provider"
	"github.com/spf13/cobra"
)

// app carries the settings shared by every command.
type app struct {
	configPath    string
	logLevel      string
	logFormat     string
	inventoryFile string

	cfg      *config.Config
	registry *provider.Registry
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{registry: provider.NewRegistry()}

	root := &cobra.Command{
		Use:   "resolvr",
		Short: "Resolve declarative resource specs into per-region desired state",
		Long: `Resolvr reads cluster, security group and load balancer specs written in
Pkl, JSON or YAML, fills the fields they leave open (networks, availability
zones, images, key pairs, certificates) from the cloud inventory and expands
each spec into one concrete resource per region.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to a resolvr config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&a.inventoryFile, "inventory", "", "Inventory snapshot file (selects the file provider)")

	root.AddCommand(newResolveCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newGraphCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads configuration, applies flag overrides and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Read(a.configPath)
	if err != nil {
		return err
	}
	if a.inventoryFile != "" {
		cfg.Inventory.Provider = "file"
		cfg.Inventory.File = a.inventoryFile
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	// Only resolve talks to the inventory; the other commands run without
	// a complete config.
	if cmd.Name() == "resolve" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	} else if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}

	logging.Configure(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	a.cfg = cfg
	return nil
}
