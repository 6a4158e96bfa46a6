package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/invoice-pay/internal/auth"
)

func tokenCmd(cfg cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AdminJWTSecret == "" {
				return fmt.Errorf("ADMIN_JWT_SECRET is required")
			}
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if subject == "" {
				return fmt.Errorf("--subject must not be empty")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			token, err := auth.GenerateToken(subject, auth.RoleAdmin, cfg.AdminJWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringP("subject", "s", "operator", "Token subject, usually the operator's email")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")

	return cmd
}
