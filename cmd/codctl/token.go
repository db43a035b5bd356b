package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/auth"
	"github.com/Andres1439/verify-cod-orders/internal/config"
	"github.com/Andres1439/verify-cod-orders/internal/rbac"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the /v1 API",
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes := splitScopes(viper.GetString("scopes"))
			for _, s := range scopes {
				if !rbac.IsKnown(s) {
					return fmt.Errorf("unknown scope %q", s)
				}
			}

			m, err := auth.NewManager(config.AuthConfig{
				JWTSecret:   viper.GetString("jwt-secret"),
				JWTIssuer:   viper.GetString("jwt-issuer"),
				JWTAudience: viper.GetString("jwt-audience"),
				TokenTTL:    viper.GetDuration("ttl"),
			})
			if err != nil {
				return err
			}
			tok, err := m.Issue(time.Now(), viper.GetString("subject"), scopes, viper.GetDuration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("jwt-secret", "", "HMAC secret shared with the API")
	cmd.Flags().String("jwt-issuer", "", "Issuer claim")
	cmd.Flags().String("jwt-audience", "", "Audience claim")
	cmd.Flags().String("subject", "scheduler", "Subject recorded as the actor of audited actions")
	cmd.Flags().String("scopes", strings.Join([]string{rbac.ScopeCallsWrite, rbac.ScopeRetryRead, rbac.ScopeRetryWrite}, ","), "Comma separated scopes")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func splitScopes(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
