package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/credential"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development token with the configured JWT secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.Mode != "jwt" {
			return errors.New("tokens can only be issued when auth.mode is jwt")
		}
		if cfg.Auth.UseKeyring {
			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := ring.Apply(&cfg.Auth); err != nil {
				return err
			}
		}

		verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return err
		}
		token, err := verifier.Issue(auth.Identity{UserID: tokenUser, Email: tokenEmail}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "user id to sign for (required)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
