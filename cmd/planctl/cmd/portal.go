package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/spf13/cobra"
)

const defaultValidateURL = "http://localhost:9000/api/auth/session/validate/"

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Talk to the login portal",
}

var portalValidateCmd = &cobra.Command{
	Use:   "validate TOKEN",
	Short: "Ask the portal whether a session token is live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		validateURL := cfg.GetString("validate-url")
		if validateURL == "" {
			validateURL = defaultValidateURL
		}

		client := federation.NewPortalClient(validateURL, timeout, nil)
		session, err := client.Resolve(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			return fmt.Errorf("portal did not confirm the token: %w", err)
		}

		return printValue(cmd.OutOrStdout(), map[string]any{
			"email":        session.User.Email,
			"username":     session.User.Username,
			"display_name": session.User.DisplayName,
			"role":         session.User.Role,
			"expires_at":   session.ExpiresAt.UTC().Format(time.RFC3339),
		})
	},
}

func init() {
	portalValidateCmd.Flags().String("validate-url", "", "portal validate endpoint (default $PORTAL_SESSION_VALIDATE_URL)")
	portalValidateCmd.Flags().Duration("timeout", federation.DefaultPortalTimeout, "request timeout")
	_ = cfg.BindPFlag("validate-url", portalValidateCmd.Flags().Lookup("validate-url"))

	portalCmd.AddCommand(portalValidateCmd)
}
