package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jakoblilliemarck/fxmq"
	"github.com/jakoblilliemarck/fxmq/backoff"
	"github.com/jakoblilliemarck/fxmq/internal/localnotify"
	"github.com/jakoblilliemarck/fxmq/internal/logging"
	"github.com/jakoblilliemarck/fxmq/internal/metrics"
	"github.com/jakoblilliemarck/fxmq/internal/observability"
	"github.com/jakoblilliemarck/fxmq/internal/redisnotify"
	"github.com/jakoblilliemarck/fxmq/pglisten"
	"github.com/jakoblilliemarck/fxmq/worker"

	goredis "github.com/go-redis/redis/v8"
)

func workerCmd() *cobra.Command {
	var logLevel string
	var handles []string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the fxmq worker pool",
		Long:  "Poll the queue, dispatch messages to registered handlers, and report outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Daemon.LogLevel)

			ctx := context.Background()

			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			pool, err := connectPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			queries, err := fxmq.NewQueries(pool, cfg.Postgres.SchemaName)
			if err != nil {
				return err
			}

			hostID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("generate host id: %w", err)
			}

			workers := worker.New(queries, hostID, worker.Config{
				Workers:       cfg.Queue.Workers,
				LeaseDuration: cfg.Queue.LeaseDuration,
				InvokeTimeout: cfg.Queue.InvokeTimeout,
				MaxAttempts:   cfg.Queue.MaxAttempts,
				RetryBackoff:  backoff.Exponential{Base: cfg.Queue.RetryBackoffBase, BaseDelay: cfg.Queue.RetryBaseDelay},
				PollBackoff:   backoff.Exponential{Base: cfg.Queue.PollBackoffBase, BaseDelay: cfg.Queue.PollBaseDelay},
			})

			// fxmqd ships no compiled-in business handlers; --handle names the
			// messages this instance acknowledges, for ops and demo use.
			for _, name := range handles {
				workers.Register(fxmq.HashName(name), worker.HandlerFunc(func(ctx context.Context, msg fxmq.RawMessage) error {
					logging.Op().Info("handled message", "name", msg.Name, "id", msg.ID)
					return nil
				}))
			}

			if cfg.PgListen.Enabled {
				listener := pglisten.New(pool, cfg.PgListen.Channel)
				go func() {
					if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
						logging.Op().Error("pg listener stopped", "error", err)
					}
				}()
				workers.WithPgListener(listener.Signal())
			} else if cfg.Redis.Enabled {
				client := goredis.NewClient(&goredis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer client.Close()
				listener := redisnotify.New(client, cfg.Redis.Channel)
				go func() {
					if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
						logging.Op().Error("redis listener stopped", "error", err)
					}
				}()
				workers.WithPgListener(listener.Signal())
			} else {
				// No Postgres LISTEN/NOTIFY or Redis configured: fall back to an
				// in-process hub. It only wakes workers when something in this
				// same binary calls hub.Notify, so standalone deployments are
				// still served by the poll loop's own backoff.
				hub := localnotify.NewHub()
				defer hub.Close()
				workers.WithPgListener(hub.Subscribe(ctx, "publish"))
			}

			workers.Start(ctx)
			defer workers.Stop()

			var httpSrv *http.Server
			if cfg.Daemon.HTTPAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.PrometheusHandler())
				httpSrv = &http.Server{Addr: cfg.Daemon.HTTPAddr, Handler: observability.HTTPMiddleware(mux)}
				go func() {
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("http server stopped", "error", err)
					}
				}()
			}

			logging.Op().Info("fxmqd worker started", "host_id", hostID, "handles", handles)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			if httpSrv != nil {
				_ = httpSrv.Shutdown(context.Background())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringSliceVar(&handles, "handle", nil, "Message name to acknowledge (repeatable)")

	return cmd
}
