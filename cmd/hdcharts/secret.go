package main

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/hdcharts/internal/credential"
	"github.com/nhle/hdcharts/internal/theme"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Store verifier secrets in the OS keyring",
	Long: `Secrets stored here are used by serve when auth.use_keyring is true
and the config file and environment leave them empty.

Keys: ` + strings.Join(credential.Keys, ", "),
}

var secretSetCmd = &cobra.Command{
	Use:   "set KEY",
	Short: "Read a secret from stdin and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := checkSecretKey(key); err != nil {
			return err
		}

		value, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		value = strings.TrimSpace(value)
		if value == "" {
			if err != nil {
				return fmt.Errorf("reading secret from stdin: %w", err)
			}
			return fmt.Errorf("secret for %s is empty", key)
		}

		ring, err := credential.Open()
		if err != nil {
			return err
		}
		if err := ring.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", theme.SuccessStyle.Render("stored"), key)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove a secret from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := checkSecretKey(key); err != nil {
			return err
		}
		ring, err := credential.Open()
		if err != nil {
			return err
		}
		if err := ring.Delete(key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", theme.SuccessStyle.Render("deleted"), key)
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}

func checkSecretKey(key string) error {
	if !slices.Contains(credential.Keys, key) {
		return fmt.Errorf("unknown secret %q (want one of %s)", key, strings.Join(credential.Keys, ", "))
	}
	return nil
}
