package cmd

import (
	"fmt"

	"github.com/nzoschke/beatmarket/internal/db"
	"github.com/spf13/cobra"
)

func MigrateCmd(flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			err = db.RunMigrations(database.DB, flags.driver)
			if err != nil {
				return err
			}
			return printVersion(cmd, flags)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			err = db.MigrateDown(database.DB, flags.driver)
			if err != nil {
				return err
			}
			return printVersion(cmd, flags)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, flags)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, flags *dbFlags) error {
	database, err := flags.open()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	version, err := db.Version(database.DB, flags.driver)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return err
}
