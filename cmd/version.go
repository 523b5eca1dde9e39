package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/batchlane/batchlane/internal/build"
)

// NewVersionCommand returns the command to get batchlane version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the batchlane version",
		Long:  "Return the batchlane version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("batchlane version %s date %s commit id %s ", build.Version, build.Date, build.Commit)
	return nil
}
