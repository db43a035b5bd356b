package main

import (
	"errors"
	"fmt"

	"github.com/Andres1439/verify-cod-orders/internal/migrations"
	"github.com/Andres1439/verify-cod-orders/pkg/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := viper.GetString("database-url")
			if dsn == "" {
				return errors.New("--database-url (or COD_DATABASE_URL) is required")
			}
			log := newLogger()

			db, err := utils.OpenPostgres(cmd.Context(), dsn, utils.PostgresPoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Apply(cmd.Context(), db, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
	cmd.Flags().String("database-url", "", "Postgres connection string")
	return cmd
}
