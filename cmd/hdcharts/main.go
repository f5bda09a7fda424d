// Package main provides the hdcharts server and admin CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/store"
)

var (
	// configPath is set by the --config flag.
	configPath string

	// cfg is loaded before every command runs.
	cfg *model.AppConfig
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hdcharts",
	Short: "Charting backend for hemodialysis clinics",
	Long: `hdcharts stores per-user flowsheets, snippets, checklists and lab
entries, keeps a rolling backup history of each, and serves them over a
JSON HTTP API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(tokenCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// openStore opens the configured database, applying migrations.
func openStore() (*store.SQLStore, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Database.Driver, err)
	}
	return st, nil
}

// cliLogger logs admin commands to stderr at warn level so service
// warnings still surface.
func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.WarnLevel).
		With().Timestamp().Logger()
}
