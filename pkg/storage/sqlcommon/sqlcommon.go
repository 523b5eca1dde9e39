package sqlcommon

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"

	"github.com/batchlane/batchlane/internal/build"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
)

var tracer = otel.Tracer("batchlane/pkg/storage/sqlcommon")

const offsetTable = "pipeline_offset"

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	// PingTimeout bounds how long New waits for the database to answer.
	PingTimeout time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithPingTimeout returns a DatastoreOption that bounds the initial
// connection attempts.
func WithPingTimeout(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.PingTimeout = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = time.Minute
	}

	return cfg
}

// DBInfo encapsulates DB information for use in common method.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
}

type errorHandlerFn func(error, ...interface{}) error

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, dialect string) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
	}
}

// ReadOffset provides the common method for reading the latest offset across sql storage.
func ReadOffset(ctx context.Context, dbInfo *DBInfo, pipeline string) (storage.Offset, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ReadOffset")
	defer span.End()

	var o storage.Offset
	err := dbInfo.stbl.
		Select("pipeline_name", "batch_id", "run_id", "committed_at").
		From(offsetTable).
		Where(sq.Eq{"pipeline_name": pipeline}).
		OrderBy("id DESC").
		Limit(1).
		QueryRowContext(ctx).
		Scan(&o.Pipeline, &o.BatchID, &o.RunID, &o.CommittedAt)
	if err != nil {
		return storage.Offset{}, dbInfo.HandleSQLError(err)
	}

	return o, nil
}

// ListCommits provides the common method for listing offsets, newest first, across sql storage.
func ListCommits(ctx context.Context, dbInfo *DBInfo, pipeline string, limit int) ([]storage.Offset, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ListCommits")
	defer span.End()

	rows, err := dbInfo.stbl.
		Select("pipeline_name", "batch_id", "run_id", "committed_at").
		From(offsetTable).
		Where(sq.Eq{"pipeline_name": pipeline}).
		OrderBy("id DESC").
		Limit(uint64(storage.NormalizeLimit(limit))).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	res := []storage.Offset{}
	for rows.Next() {
		var o storage.Offset
		if err := rows.Scan(&o.Pipeline, &o.BatchID, &o.RunID, &o.CommittedAt); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return res, nil
}

// CommitOffset provides the common method for committing an offset across sql storage.
func CommitOffset(ctx context.Context, dbInfo *DBInfo, pipeline, batchID string, now time.Time) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.CommitOffset")
	defer span.End()

	if err := storage.ValidateCommit(pipeline, batchID); err != nil {
		return err
	}

	runID, _ := storage.RunIDFromContext(ctx)

	_, err := dbInfo.stbl.
		Insert(offsetTable).
		Columns("pipeline_name", "batch_id", "run_id", "committed_at").
		Values(pipeline, batchID, runID, now.UTC()).
		ExecContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}

	return nil
}

// IsReady returns true if connection to datastore is successful AND
// (the datastore has the latest migration applied OR skipVersionCheck).
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run 'batchlane migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}
