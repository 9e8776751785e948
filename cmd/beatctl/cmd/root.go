package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nzoschke/beatmarket/internal/db"
	"github.com/spf13/cobra"
)

type dbFlags struct {
	driver     string
	connection string
}

func (f *dbFlags) open() (*sqlx.DB, error) {
	database, err := db.Init(f.driver, f.connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// Root builds the beatctl command tree. Defaults come from DB_DRIVER and
// DB_CONNECTION.
func Root(driver, connection string) *cobra.Command {
	flags := &dbFlags{}

	rootCmd := &cobra.Command{
		Use:           "beatctl",
		Short:         "Administration tools for beatmarket",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", driver, "database driver (sqlite or pgx), or set DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&flags.connection, "dsn", connection, "database connection string, or set DB_CONNECTION")

	rootCmd.AddCommand(MigrateCmd(flags))
	rootCmd.AddCommand(UsersCmd(flags))

	return rootCmd
}
