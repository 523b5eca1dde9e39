// Package offsets contains the command to inspect committed pipeline offsets.
package offsets

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/batchlane/batchlane/cmd/util"
	"github.com/batchlane/batchlane/internal/config"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
)

const (
	datastoreEngineFlag   = "datastore-engine"
	datastoreURIFlag      = "datastore-uri"
	datastoreUsernameFlag = "datastore-username"
	datastorePasswordFlag = "datastore-password"
	limitFlag             = "limit"
)

func NewOffsetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offsets <pipeline>",
		Short: "List the offsets committed by a pipeline, newest first",
		RunE:  listOffsets,
		Args:  cobra.ExactArgs(1),
	}

	defaultConfig := config.DefaultConfig()
	flags := cmd.Flags()

	flags.String(datastoreEngineFlag, defaultConfig.Datastore.Engine, "the datastore engine offsets are persisted in")
	flags.String(datastoreURIFlag, "", "the connection uri of the datastore (for any engine other than 'memory')")
	flags.String(datastoreUsernameFlag, "", "(optional) overwrite the username in the connection string")
	flags.String(datastorePasswordFlag, "", "(optional) overwrite the password in the connection string")
	flags.Int(limitFlag, storage.DefaultListLimit, fmt.Sprintf("the number of offsets to list (at most %d)", storage.MaxListLimit))

	cmd.PreRun = func(command *cobra.Command, _ []string) {
		flags := command.Flags()
		util.MustBindPFlag("datastore.engine", flags.Lookup(datastoreEngineFlag))
		util.MustBindPFlag("datastore.uri", flags.Lookup(datastoreURIFlag))
		util.MustBindPFlag("datastore.username", flags.Lookup(datastoreUsernameFlag))
		util.MustBindPFlag("datastore.password", flags.Lookup(datastorePasswordFlag))
		util.MustBindPFlag(limitFlag, flags.Lookup(limitFlag))
	}

	return cmd
}

func listOffsets(cmd *cobra.Command, args []string) error {
	dsCfg := config.DefaultConfig().Datastore
	if err := viper.UnmarshalKey("datastore", &dsCfg); err != nil {
		return fmt.Errorf("failed to unmarshal datastore config: %w", err)
	}

	ds, err := util.OpenDatastore(dsCfg, logger.NewNoopLogger())
	if err != nil {
		return err
	}
	defer ds.Close()

	commits, err := ds.ListCommits(cmd.Context(), args[0], viper.GetInt(limitFlag))
	if err != nil {
		return fmt.Errorf("list offsets of pipeline '%s': %w", args[0], err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH ID\tRUN ID\tCOMMITTED AT")
	for _, c := range commits {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.BatchID, c.RunID, c.CommittedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}
