package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("batchlane/pkg/storage/mysql")

const errDuplicateEntry = 1062

// Datastore provides a MySQL based implementation of [storage.OffsetStore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that Datastore implements the OffsetStore interface.
var _ storage.OffsetStore = (*Datastore)(nil)

// PrepareDSN applies the configured credentials to uri and turns on time
// parsing, which scanning commit timestamps relies on.
func PrepareDSN(uri, username, password string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if username != "" {
		dsnCfg.User = username
	}
	if password != "" {
		dsnCfg.Passwd = password
	}
	dsnCfg.ParseTime = true

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlcommon.PingWithBackoff(context.Background(), db, cfg.Logger, cfg.PingTimeout); err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "batchlane")
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "mysql"),
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close closes the datastore and cleans up any residual resources.
func (m *Datastore) Close() {
	if m.dbStatsCollector != nil {
		prometheus.Unregister(m.dbStatsCollector)
	}
	m.db.Close()
}

// ReadOffset see [storage.OffsetReader].ReadOffset.
func (m *Datastore) ReadOffset(ctx context.Context, pipeline string) (storage.Offset, error) {
	ctx, span := tracer.Start(ctx, "mysql.ReadOffset")
	defer span.End()

	return sqlcommon.ReadOffset(ctx, m.dbInfo, pipeline)
}

// ListCommits see [storage.OffsetReader].ListCommits.
func (m *Datastore) ListCommits(ctx context.Context, pipeline string, limit int) ([]storage.Offset, error) {
	ctx, span := tracer.Start(ctx, "mysql.ListCommits")
	defer span.End()

	return sqlcommon.ListCommits(ctx, m.dbInfo, pipeline, limit)
}

// CommitOffset see [storage.OffsetWriter].CommitOffset.
func (m *Datastore) CommitOffset(ctx context.Context, pipeline, batchID string) error {
	ctx, span := tracer.Start(ctx, "mysql.CommitOffset")
	defer span.End()

	return sqlcommon.CommitOffset(ctx, m.dbInfo, pipeline, batchID, time.Now())
}

// IsReady see [sqlcommon.IsReady].
func (m *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	versionReady, err := sqlcommon.IsReady(ctx, m.versionReady, m.db)
	if err != nil {
		return versionReady, err
	}
	m.versionReady = versionReady.IsReady
	return versionReady, nil
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
