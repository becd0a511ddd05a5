package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/internal/cliout"
)

func statsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "stats <message-id>",
		Short: "Print a message's lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id: %w", err)
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

			now := time.Now()
			checks := []struct {
				state string
				fn    func(context.Context, uuid.UUID, time.Time) (bool, error)
			}{
				{"pending", queries.IsPending},
				{"in_progress", queries.IsInProgress},
				{"missing", queries.IsMissing},
				{"failed", queries.IsFailed},
				{"succeeded", queries.IsSucceeded},
				{"dead", queries.IsDead},
			}

			var states []string
			for _, c := range checks {
				ok, err := c.fn(ctx, id, now)
				if err != nil {
					return fmt.Errorf("check %s: %w", c.state, err)
				}
				if ok {
					states = append(states, c.state)
				}
			}
			if len(states) == 0 {
				states = []string{"unknown"}
			}

			p := cliout.NewPrinter(cliout.ParseFormat(outputFormat))
			return p.PrintMessage(cliout.MessageRow{
				ID:    id.String(),
				State: strings.Join(states, ","),
			})
		},
	}

	cmd.Flags().StringVar(&outputFormat, "output", "table", "Output format: table, json, yaml")

	return cmd
}
