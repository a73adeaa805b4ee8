// Package cli implements the bankfeeds command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type rootFlags struct {
	configPath string
	driver     string
	dsn        string
	logLevel   string
}

func (f *rootFlags) fileConfig() (FileConfig, error) {
	cfg, err := LoadFileConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	if strings.TrimSpace(f.driver) != "" {
		cfg.Database.Driver = f.driver
	}
	if strings.TrimSpace(f.dsn) != "" {
		cfg.Database.DSN = f.dsn
	}
	if strings.TrimSpace(f.logLevel) != "" {
		cfg.Log.Level = f.logLevel
	}
	driver, err := normalizeDriver(cfg.Database.Driver)
	if err != nil {
		return cfg, err
	}
	cfg.Database.Driver = driver
	return cfg, nil
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:     "bankfeeds",
		Short:   "Pull bank and mobile-money statements into a normalized ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to bankfeeds.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "database driver (sqlite3|postgres)")
	rootCmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "database connection string")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newMigrateCommand(flags),
		newAccountsCommand(flags),
		newSyncCommand(flags),
		newBalanceCommand(flags),
		newLinesCommand(flags),
		newServeCommand(flags),
	)
	return rootCmd
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
