package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/dirsync/cmd/config"
	"github.com/sidkik/dirsync/cmd/doctor"
	"github.com/sidkik/dirsync/cmd/ls"
	syncCmd "github.com/sidkik/dirsync/cmd/sync"
	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "DIRSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	global := &util.GlobalOptions{}
	rootCmd := &cobra.Command{
		Use:   "dirsync",
		Short: "Copy directories between this machine and SSH hosts",
		Long: "dirsync replaces a destination directory with a source directory.\n" +
			"The source is archived with tar, copied with scp when one side is\n" +
			"remote, and extracted over the destination after confirmation.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if global.Verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&global.ConfigPath, "config", "",
		"Path to the config file. Defaults to $DIRSYNC_CONFIG, or ~/.dirsync.toml")
	rootCmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false,
		"Log every command before it runs")

	rootCmd.AddCommand(
		configCmd.New(global),
		doctor.New(global),
		ls.New(global),
		syncCmd.NewPull(global),
		syncCmd.NewPush(global),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
