package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/batchlane/batchlane/assets"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/sqlcommon"
)

// PostgresMigrationProvider implements MigrationProvider for PostgreSQL.
type PostgresMigrationProvider struct{}

// NewPostgresMigrationProvider creates a new PostgreSQL migration provider.
func NewPostgresMigrationProvider() *PostgresMigrationProvider {
	return &PostgresMigrationProvider{}
}

// GetSupportedEngine returns the database engine this provider supports.
func (p *PostgresMigrationProvider) GetSupportedEngine() string {
	return "postgres"
}

// RunMigrations executes PostgreSQL database migrations.
func (p *PostgresMigrationProvider) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	db, err := p.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	l := config.Logger
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if err := sqlcommon.PingWithBackoff(ctx, db, l, config.Timeout); err != nil {
		return fmt.Errorf("failed to initialize postgres connection: %w", err)
	}

	_, err = sqlcommon.RunMigrations(ctx, db, goose.DialectPostgres, assets.PostgresMigrationDir, config)
	return err
}

// GetCurrentVersion returns the current migration version.
func (p *PostgresMigrationProvider) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	db, err := p.open(config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return sqlcommon.CurrentVersion(ctx, db, goose.DialectPostgres, assets.PostgresMigrationDir)
}

func (p *PostgresMigrationProvider) open(config storage.MigrationConfig) (*sql.DB, error) {
	uri, err := withCredentials(config.URI, sqlcommon.NewConfig(
		sqlcommon.WithUsername(config.Username),
		sqlcommon.WithPassword(config.Password),
	))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return db, nil
}
