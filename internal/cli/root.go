// Package cli implements the komponente command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erazemk/komponente/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogFile    string
	Driver     string
	DSN        string
}

// NewRootCommand creates the root command for the komponente CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "komponente",
		Short: "Shared component inventory",
		Long: `komponente tracks quantity-bearing components that are checked out to
assets or people, and never lets a component's quantity drop below the units
currently checked out.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "komponente.yaml", "path to YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.LogFile, "log", "l", "", "also write logs to this file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite|mysql)")
	cmd.PersistentFlags().StringVarP(&opts.DSN, "db", "d", "", "database path or DSN")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies the global flag overrides.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.LogFile = o.LogFile
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = o.Driver
	}
	if flags.Changed("db") {
		cfg.Database.DSN = o.DSN
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
