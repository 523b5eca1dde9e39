package main

import (
	"os"

	"github.com/batchlane/batchlane/cmd"
	"github.com/batchlane/batchlane/cmd/migrate"
	"github.com/batchlane/batchlane/cmd/offsets"
	"github.com/batchlane/batchlane/cmd/run"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	runCmd := run.NewRunCommand()
	rootCmd.AddCommand(runCmd)

	migrateCmd := migrate.NewMigrateCommand()
	rootCmd.AddCommand(migrateCmd)

	offsetsCmd := offsets.NewOffsetsCommand()
	rootCmd.AddCommand(offsetsCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
