package assets

import "embed"

const (
	SqliteMigrationDir   = "migrations/sqlite"
	PostgresMigrationDir = "migrations/postgres"
	MySQLMigrationDir    = "migrations/mysql"

	BundleDir = "bundles"
)

//go:embed migrations/*
var EmbedMigrations embed.FS

// EmbedBundles holds the default message bundles, laid out as
// bundles/<bundle>/<locale>.yaml.
//
//go:embed bundles/*
var EmbedBundles embed.FS
