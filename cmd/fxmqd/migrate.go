package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakoblilliemarck/fxmq/internal/cliout"
	"github.com/jakoblilliemarck/fxmq/migrator"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create and migrate the queue's schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			dsn, err := resolveDSN(context.Background(), cfg)
			if err != nil {
				return err
			}

			if err := migrator.Run(dsn, cfg.Postgres.SchemaName); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			cliout.NewPrinter(cliout.FormatTable).Success("migrated schema %q", cfg.Postgres.SchemaName)
			return nil
		},
	}
}
