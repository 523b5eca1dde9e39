// Package util provides common utilities for spf13/cobra CLI utilities
// that can be used for various commands within this project.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/internal/config"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/memory"
	"github.com/batchlane/batchlane/pkg/storage/mysql"
	"github.com/batchlane/batchlane/pkg/storage/postgres"
	"github.com/batchlane/batchlane/pkg/storage/sqlcommon"
	"github.com/batchlane/batchlane/pkg/storage/sqlite"
)

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// OpenDatastore opens the offset store described by cfg.
func OpenDatastore(cfg config.DatastoreConfig, l logger.Logger) (storage.OffsetStore, error) {
	opts := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(cfg.Username),
		sqlcommon.WithPassword(cfg.Password),
		sqlcommon.WithLogger(l),
		sqlcommon.WithMaxOpenConns(cfg.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(cfg.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(cfg.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(cfg.ConnMaxLifetime),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, sqlcommon.WithMetrics())
	}
	dsCfg := sqlcommon.NewConfig(opts...)

	switch cfg.Engine {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		ds, err := sqlite.New(cfg.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite datastore: %w", err)
		}
		return ds, nil
	case "postgres":
		ds, err := postgres.New(cfg.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres datastore: %w", err)
		}
		return ds, nil
	case "mysql":
		ds, err := mysql.New(cfg.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize mysql datastore: %w", err)
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", cfg.Engine)
	}
}

func PrepareTempConfigDir(t *testing.T) string {
	_, err := os.Stat("/etc/batchlane/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/batchlane/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".batchlane")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	confFile, err := os.Create(filepath.Join(confdir, "config.yaml"))
	require.NoError(t, err)
	_, err = confFile.WriteString(config)
	require.NoError(t, err)
	require.NoError(t, confFile.Close())
}
