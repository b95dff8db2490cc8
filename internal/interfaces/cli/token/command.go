// Package token issues access tokens from the command line for operators
// and local testing.
package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/auth"
	"github.com/orris-inc/livedesk/internal/infrastructure/config"
	sharedauth "github.com/orris-inc/livedesk/internal/shared/auth"
	"github.com/orris-inc/livedesk/internal/shared/constants"
)

var (
	env    string
	userID uint
	role   string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		Long:  `Sign an access token for a user with the configured JWT secret.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "User ID (required)")
	cmd.Flags().StringVarP(&role, "role", "r", constants.RoleCustomer, "Role: customer, guest, agent or admin")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if userID == 0 {
		return fmt.Errorf("user must be greater than zero")
	}
	if !sharedauth.IsValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	svc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessExpMin)
	tok, err := svc.Generate(ids.UserID(userID), role)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires in %d seconds\n", tok.ExpiresIn)
	return nil
}
