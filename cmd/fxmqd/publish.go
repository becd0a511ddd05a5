package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/internal/cliout"
)

// cliMessage adapts an arbitrary --name flag into a fxmq.Message so the CLI
// can publish messages for which no compiled-in type exists.
type cliMessage string

func (m cliMessage) Name() string { return string(m) }
func (m cliMessage) Hash() int32  { return fxmq.HashName(string(m)) }

func publishCmd() *cobra.Command {
	var name string
	var payload string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message onto the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload must be valid JSON")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connectPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			queries, err := fxmq.NewQueries(pool, cfg.Postgres.SchemaName)
			if err != nil {
				return err
			}

			published, err := queries.Publish(ctx, cliMessage(name), json.RawMessage(payload))
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}

			cliout.NewPrinter(cliout.FormatTable).Success(
				"published %s id=%s hash=%d", published.Name, published.ID, published.Hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Message name")
	cmd.Flags().StringVar(&payload, "payload", "{}", "Message payload, as a JSON document")

	return cmd
}
