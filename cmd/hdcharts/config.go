package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/theme"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	// The file may not exist or be valid yet.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists; pass --force to overwrite", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := model.SaveConfig(configPath, model.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", theme.SuccessStyle.Render("wrote"), configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.Auth.JWTSecret = mask(shown.Auth.JWTSecret)
		shown.Auth.APIKey = mask(shown.Auth.APIKey)

		data, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
