package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facturio/factura/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		Long:  `Apply any pending schema migrations to the database. Migrations also run automatically before every command, so this is mainly useful for provisioning a fresh database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.FormatSuccess("Database schema is up to date."))
			return nil
		},
	}
}
