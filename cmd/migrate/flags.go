package migrate

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/batchlane/batchlane/cmd/util"
)

// bindRunFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(command *cobra.Command, args []string) {
		util.MustBindPFlag(datastoreEngineConf, flags.Lookup(datastoreEngineFlag))
		util.MustBindEnv(datastoreEngineConf, "BATCHLANE_DATASTORE_ENGINE")

		util.MustBindPFlag(datastoreURIConf, flags.Lookup(datastoreURIFlag))
		util.MustBindEnv(datastoreURIConf, "BATCHLANE_DATASTORE_URI")

		util.MustBindPFlag(datastoreUsernameConf, flags.Lookup(datastoreUsernameFlag))
		util.MustBindEnv(datastoreUsernameConf, "BATCHLANE_DATASTORE_USERNAME")

		util.MustBindPFlag(datastorePasswordConf, flags.Lookup(datastorePasswordFlag))
		util.MustBindEnv(datastorePasswordConf, "BATCHLANE_DATASTORE_PASSWORD")

		util.MustBindPFlag(versionFlag, flags.Lookup(versionFlag))
		util.MustBindEnv(versionFlag, "BATCHLANE_VERSION")

		util.MustBindPFlag(timeoutFlag, flags.Lookup(timeoutFlag))
		util.MustBindEnv(timeoutFlag, "BATCHLANE_TIMEOUT")

		util.MustBindPFlag(verboseMigrationFlag, flags.Lookup(verboseMigrationFlag))
		util.MustBindEnv(verboseMigrationFlag, "BATCHLANE_VERBOSE")

		util.MustBindPFlag(logFormatConf, flags.Lookup(logFormatFlag))
		util.MustBindEnv(logFormatConf, "BATCHLANE_LOG_FORMAT")

		util.MustBindPFlag(logLevelConf, flags.Lookup(logLevelFlag))
		util.MustBindEnv(logLevelConf, "BATCHLANE_LOG_LEVEL")

		util.MustBindPFlag(logTimestampFormatConf, flags.Lookup(logTimestampFormatFlag))
		util.MustBindEnv(logTimestampFormatConf, "BATCHLANE_LOG_TIMESTAMP_FORMAT")
	}
}
