package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskmanager/internal/service"
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a staff account",
	Long: `Create a staff account that bypasses project permissions.

The password is read from --password or, when omitted, from the
TASKMGR_SUPERUSER_PASSWORD environment variable.

Examples:
  taskmgr createsuperuser --email admin@example.com --password s3cret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("TASKMGR_SUPERUSER_PASSWORD")
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.svc.CreateSuperuser(cmd.Context(), email, password)
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid superuser: %w", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %d)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	createSuperuserCmd.Flags().String("email", "", "email of the new account")
	createSuperuserCmd.Flags().String("password", "", "password of the new account")
	_ = createSuperuserCmd.MarkFlagRequired("email")
}
