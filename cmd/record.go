package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/config"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/messaging/wsclient"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video/sink"
	"github.com/rtmbot/videobot/internal/video/source"
	"github.com/spf13/cobra"
)

func newRecordCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Persist the configured bus stream to a container file",
		Long: `Connects to the messaging bus and writes the encoded stream straight to
a WebM container (plus a companion frame-id/key-frame index), without
decoding or running any bot logic. Blocks until a terminal signal is
received or the pipeline fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			verbose, _ := c.Flags().GetBool("verbose")
			util.SetVerbose(verbose)
			return recordStream(outFile)
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "output container path (defaults under the configured recorder output directory)")
	return cmd
}

func recordStream(outFile string) error {
	if outFile == "" {
		dir, err := config.RecorderOutputDir()
		if err != nil {
			return errors.Wrap(err, "resolving recorder output directory")
		}
		channels := config.MessagingChannels()
		outFile = filepath.Join(dir, sink.EscapeChannelName(channels.Frames)+".webm")
	}

	channels := config.MessagingChannels()
	client := messaging.NewResilientClient(wsclient.Factory(wsclient.Config{URL: config.MessagingEndpoint()}), func(err error) {
		util.GetLogger().Error("resilient messaging client restart failed fatally", "error", err)
	})
	if err := client.Start(); err != nil {
		return errors.Wrap(err, "starting messaging client")
	}
	defer client.Stop()
	fmt.Println(color.GreenString("connected"), "to messaging bus")

	encoded := source.BusSource(client, channels.Metadata, channels.Frames)
	guarded := streams.SignalBreaker(encoded, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	containerSink, err := sink.NewContainerSink(outFile)
	if err != nil {
		return errors.Wrap(err, "opening container sink")
	}
	fmt.Printf("%s stream to %s\n", color.CyanString("recording"), color.CyanString(outFile))
	return containerSink.Run(guarded)
}
