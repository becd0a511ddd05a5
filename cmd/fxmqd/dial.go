package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	goredis "github.com/go-redis/redis/v8"

	"github.com/jakoblilliemarck/fxmq/internal/config"
	"github.com/jakoblilliemarck/fxmq/internal/localsecrets"
	"github.com/jakoblilliemarck/fxmq/internal/secretsdsn"
)

// resolveDSN returns the Postgres DSN to dial, resolving it from
// cfg.Secrets.Backend when cfg.Secrets.Enabled.
func resolveDSN(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.Secrets.Enabled {
		return cfg.Postgres.DSN, nil
	}

	switch cfg.Secrets.Backend {
	case "local":
		return resolveLocalDSN(ctx, cfg)
	default:
		return resolveAWSDSN(ctx, cfg)
	}
}

func resolveAWSDSN(ctx context.Context, cfg *config.Config) (string, error) {
	resolver, err := secretsdsn.NewResolver(ctx, cfg.Secrets.Region)
	if err != nil {
		return "", fmt.Errorf("build secrets resolver: %w", err)
	}
	dsn, err := resolver.ResolveDSN(ctx, cfg.Secrets.PostgresDSNARN)
	if err != nil {
		return "", fmt.Errorf("resolve postgres dsn: %w", err)
	}
	return dsn, nil
}

func resolveLocalDSN(ctx context.Context, cfg *config.Config) (string, error) {
	cipher, err := localsecrets.NewCipherFromFile(cfg.Secrets.LocalKeyFile)
	if err != nil {
		return "", fmt.Errorf("load local secrets key: %w", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: cfg.Secrets.LocalRedisAddr})
	defer client.Close()

	resolver := localsecrets.NewResolver(localsecrets.NewStore(client, cipher))
	dsn, err := resolver.ResolveDSN(ctx, cfg.Secrets.PostgresDSNRef)
	if err != nil {
		return "", fmt.Errorf("resolve postgres dsn: %w", err)
	}
	return dsn, nil
}

// connectPool resolves the DSN and opens a pool sized per
// cfg.Postgres.MaxPoolConns.
func connectPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn, err := resolveDSN(ctx, cfg)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.Postgres.MaxPoolConns > 0 {
		poolCfg.MaxConns = cfg.Postgres.MaxPoolConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return pool, nil
}
