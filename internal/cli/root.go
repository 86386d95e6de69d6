package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/supermarsx/smsgate-sub000/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"                                _           _\n" +
		"  ___ _ __ ___  ___  __ _  __ _| |_ ___  __| |\n" +
		" / __| '_ ` _ \\/ __|/ _` |/ _` | __/ _ \\/ _` |\n" +
		" \\__ \\ | | | | \\__ \\ (_| | (_| | ||  __/ (_| |\n" +
		" |___/_| |_| |_|___/\\__, |\\__,_|\\__\\___|\\__,_|\n" +
		"                    |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "smsgated",
	Short: "smsgated - device-side SMS sync engine",
	Long:  color.CyanString(logo) + "\nA durable queue and sync daemon that moves device messages to a backend.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(enqueueCmd)
}
