package sqlcommon

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/batchlane/batchlane/assets"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
)

// PingWithBackoff pings db until it answers or timeout elapses.
func PingWithBackoff(ctx context.Context, db *sql.DB, l logger.Logger, timeout time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout

	attempt := 1
	return backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil {
			l.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// RunMigrations applies the embedded migrations found in dir to db. A target
// version of zero migrates to the latest version, any other target migrates
// up or down to it.
func RunMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string, cfg storage.MigrationConfig) (int64, error) {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNoopLogger()
	}

	provider, err := newProvider(db, dialect, dir, cfg.Verbose)
	if err != nil {
		return 0, err
	}

	target := int64(cfg.TargetVersion)
	var results []*goose.MigrationResult
	if target == 0 {
		results, err = provider.Up(ctx)
	} else {
		var currentVersion int64
		currentVersion, err = provider.GetDBVersion(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get db version: %w", err)
		}
		l.Info("current schema version", zap.String("engine", cfg.Engine), zap.Int64("version", currentVersion))

		switch {
		case target < currentVersion:
			results, err = provider.DownTo(ctx, target)
		case target > currentVersion:
			results, err = provider.UpTo(ctx, target)
		default:
			l.Info("nothing to migrate", zap.String("engine", cfg.Engine))
			return currentVersion, nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to run %s migrations: %w", cfg.Engine, err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, err
	}
	l.Info("migration done",
		zap.String("engine", cfg.Engine),
		zap.Int("applied", len(results)),
		zap.Int64("version", version),
	)
	return version, nil
}

// CurrentVersion returns the schema version of db.
func CurrentVersion(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) (int64, error) {
	provider, err := newProvider(db, dialect, dir, false)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func newProvider(db *sql.DB, dialect goose.Dialect, dir string, verbose bool) (*goose.Provider, error) {
	fsys, err := fs.Sub(assets.EmbedMigrations, dir)
	if err != nil {
		return nil, err
	}

	return goose.NewProvider(dialect, db, fsys,
		goose.WithDisableGlobalRegistry(true),
		goose.WithVerbose(verbose),
	)
}
