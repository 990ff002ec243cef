package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an access token with the configured secret (for staging and smoke tests)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		role := identity.Role(tokenRole)
		if tokenSubject == "" || !role.Valid() {
			return fmt.Errorf("--sub is required and --role must be admin, doctor, health_worker or patient")
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}
		tok, err := middleware.IssueToken([]byte(cfg.Auth.HMACSecret), identity.Principal{ID: tokenSubject, Role: role}, ttl, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "user id placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.tokenTTL)")
	rootCmd.AddCommand(tokenCmd)
}
