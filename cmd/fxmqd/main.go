// Command fxmqd is the CLI and daemon entrypoint for fxmq: run migrations
// against a schema, publish messages, run a worker pool, or inspect a
// message's lifecycle state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jakoblilliemarck/fxmq/internal/config"
)

var (
	pgDSN      string
	schemaName string
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fxmqd",
		Short: "fxmq - a PostgreSQL-backed durable message queue",
		Long:  "Migrate, publish to, and run workers against a PostgreSQL-backed message queue",
	}

	rootCmd.PersistentFlags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN")
	rootCmd.PersistentFlags().StringVar(&schemaName, "schema", "", "Queue schema name")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (JSON or YAML)")

	rootCmd.AddCommand(
		migrateCmd(),
		publishCmd(),
		workerCmd(),
		statsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the standard default → file → env → flag precedence
// shared by every subcommand that talks to Postgres.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("pg-dsn") {
		cfg.Postgres.DSN = pgDSN
	}
	if cmd.Flags().Changed("schema") {
		cfg.Postgres.SchemaName = schemaName
	}

	return cfg, nil
}
