package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-router/internal/auth"
	"github.com/spec-kit/incident-router/internal/config"
	"github.com/spec-kit/incident-router/internal/observability"
	"github.com/spec-kit/incident-router/internal/persistence"
)

// withDatabase loads configuration, opens the pool and hands both to fn.
func withDatabase(ctx context.Context, fn func(*persistence.Postgres, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	return fn(pg, logger)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd.Context(), func(pg *persistence.Postgres, logger *zap.Logger) error {
		return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger)
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd.Context(), func(pg *persistence.Postgres, logger *zap.Logger) error {
		if err := persistence.RollbackMigration(cmd.Context(), pg.PoolHandle()); err != nil {
			return err
		}
		logger.Info("rolled back latest migration")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withDatabase(cmd.Context(), func(pg *persistence.Postgres, _ *zap.Logger) error {
		version, err := persistence.MigrationVersion(cmd.Context(), pg.PoolHandle())
		if err != nil {
			return err
		}
		cmd.Printf("schema version: %d\n", version)
		return nil
	})
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenActorID <= 0 {
		return fmt.Errorf("--actor-id must be positive")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).GenerateToken(tokenActorID)
	if err != nil {
		return err
	}
	cmd.Println(token)
	cmd.PrintErrf("expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
