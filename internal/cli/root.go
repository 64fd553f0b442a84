package cli

import (
	"cmp"

	"github.com/soyeahso/perch/internal/config"
	"github.com/soyeahso/perch/internal/logging"
	"github.com/spf13/cobra"
)

// Persistent flag values and the runtime they configure. initRuntime
// fills paths and log before any subcommand runs.
var (
	cfgFile  string
	homeDir  string
	logLevel string

	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perch",
		Short: "Perch — provider and agent selection manager",
		Long:  "Perch keeps track of which AI provider and agents you are using, reconciles that choice against what is actually available, and serves it to your tools.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return initRuntime()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.perch/config.yaml)")
	pf.StringVar(&homeDir, "home", "", "base directory (default ~/.perch, or PERCH_HOME)")
	pf.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(),
		newUseCmd(),
		newModelCmd(),
		newSyncCmd(),
		newHistoryCmd(),
		newServeCmd(),
		newConfigCmd(),
		newPickCmd(),
	)

	return cmd
}

// initRuntime resolves the perch home layout and builds the CLI logger.
// The --home and --config flags win over PERCH_HOME and the defaults.
func initRuntime() error {
	resolved, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if homeDir != "" {
		resolved = config.PathsFrom(homeDir)
	}
	if cfgFile != "" {
		resolved.Config = cfgFile
	}
	paths = resolved
	log = logging.New(nil, cmp.Or(logLevel, "info"))
	return nil
}

// Execute builds the perch command tree and runs it.
func Execute() error {
	return newRootCmd().Execute()
}
