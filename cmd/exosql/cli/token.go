package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/exosql/exosql/internal/reqctx"
)

func newTokenCmd() *cobra.Command {
	var (
		claims []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed JWT for local development",
		Long: `Issue an HS256 token signed with auth.jwt_secret. Its claims are what
@jwt request-context parameters resolve to.`,
		Example: `  exosql token --claim sub=42 --claim role=admin
  EXOSQL_AUTH_JWT_SECRET=dev exosql token --claim sub=42 --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not set (use EXOSQL_AUTH_JWT_SECRET)")
			}
			if ttl == 0 {
				if ttl, err = cfg.JWTExpiry(); err != nil {
					return fmt.Errorf("auth.jwt_expiry: %w", err)
				}
			}

			parsed, err := parseClaims(claims)
			if err != nil {
				return err
			}
			token, err := reqctx.NewJWTProvider(cfg.Auth.JWTSecret).Issue(parsed, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&claims, "claim", nil, "Claim as key=value (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.jwt_expiry)")

	return cmd
}

func parseClaims(pairs []string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid claim %q: want key=value", pair)
		}
		claims[key] = value
	}
	return claims, nil
}
