// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with BATCHLANE, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BATCHLANE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/batchlane", "$HOME/.batchlane", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// a missing file leaves flags, env and defaults in charge
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "batchlane",
		Short: "A batch pipeline runner that moves records between stages over named lanes",
		Long: `A batch pipeline runner that moves records between stages over named lanes.

Pipelines are declared in config.yaml as ordered stages. Every batch starts at a
source, flows through the stages that consume its lanes and, once complete,
checkpoints the source offset so the next run resumes where this one stopped.`,
		SilenceUsage: true,
	}
}
