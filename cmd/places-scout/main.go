// Package main is the entry point for the places-scout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/places-scout/internal/config"
	"github.com/Sternrassler/places-scout/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is resolved before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "places-scout",
	Short: "Find low-rated places for a set of keywords",
	Long: `places-scout searches the Places API for every keyword, keeps the places
rated strictly below a threshold, deduplicates them across keywords and
fetches their full details with bounded concurrency.

Run "serve" for the HTTP API or "search" for a one-shot query.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logging.Setup(loaded.Logging())
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./places-scout.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
