package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/observability"
	"github.com/spec-kit/qrpass-service/internal/persistence"
	"github.com/spec-kit/qrpass-service/internal/repository"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// PurgeCommand deletes old token records. It is the only path that removes them.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete expired (and optionally redeemed) QR token records",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Only purge tokens that expired at least this long ago",
			},
			&cli.BoolFlag{
				Name:  "include-redeemed",
				Usage: "Also purge redeemed tokens regardless of expiry",
			},
		},
		Action: func(c *cli.Context) error {
			return withPostgres(c, func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
				svc := service.NewMaintenanceService(repository.NewQRTokenRepository(pg.PoolHandle()), logger)
				result, err := svc.Purge(ctx, c.Duration("older-than"), c.Bool("include-redeemed"))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "purged %d token(s) expired before %s\n", result.Deleted, result.Cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}
}

// MigrateCommand applies pending schema migrations.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			return withPostgres(c, func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
				return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
			})
		},
	}
}

func withPostgres(c *cli.Context, fn func(context.Context, *persistence.Postgres, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger, "qrctl")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	return fn(ctx, pg, logger)
}
