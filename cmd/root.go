package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mail-backend",
	Short: "Mail synchronization backend",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logrus.Fatalf("Error calling help command: %s", err.Error())
		}
	},
}

// Execute runs the root command. version is the build-time git commit,
// surfaced through --version.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Error executing root command: %s", err.Error())
	}
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.AddCommand((&serveCmd{}).Command())
	rootCmd.AddCommand((&migrateCmd{}).Command())
	rootCmd.AddCommand((&purgeQueryStatesCmd{}).Command())
}
