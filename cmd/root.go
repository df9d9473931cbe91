// Package cmd wires the cobra CLI surface on top of the streams/video/bot
// core: "videobot run" drives a bot pipeline end to end, "videobot record"
// drives the recorder variant.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "videobot",
	Short: "Run video-analysis bots against a pub/sub video bus",
	Long: `videobot hosts user-supplied video-analysis bot logic: it decodes a
live stream of compressed video from a pub/sub messaging bus, batches
decoded frames to the bot's image callback, and republishes the
analysis/debug/control messages the bot emits. The "record" subcommand
reads the same bus source but persists the still-encoded stream to a
container file, without decoding it or invoking a bot.`,
}

// Execute runs the root command, returning any error cobra produced.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug-level logging")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRecordCmd())
}
