package cmd

import (
	"fmt"
	"time"

	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/repository"
	"github.com/nzoschke/beatmarket/internal/service"
	"github.com/spf13/cobra"
)

func UsersCmd(flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and manage accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <email>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			users := service.NewUserService(repository.NewUserRepository(database))
			user, err := users.ByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printUser(cmd, user)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <email>",
		Short: "Mark an account as verified without a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			users := service.NewUserService(repository.NewUserRepository(database))
			user, err := users.MarkVerified(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printUser(cmd, user)
			return nil
		},
	})

	return cmd
}

func printUser(cmd *cobra.Command, user *model.User) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "id:       %s\n", user.ID)
	_, _ = fmt.Fprintf(out, "email:    %s\n", user.Email)
	_, _ = fmt.Fprintf(out, "verified: %t\n", user.Verified)
	_, _ = fmt.Fprintf(out, "created:  %s\n", user.CreatedAt.UTC().Format(time.RFC3339))
	if user.PendingVerification() && user.VerificationExpiresAt != nil {
		_, _ = fmt.Fprintf(out, "token expires: %s\n", user.VerificationExpiresAt.UTC().Format(time.RFC3339))
	}
}
