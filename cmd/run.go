package cmd

import (
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/config"
	"github.com/rtmbot/videobot/internal/bot"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/messaging/wsclient"
	"github.com/rtmbot/videobot/internal/metrics"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/decode"
	"github.com/rtmbot/videobot/internal/video/sink"
	"github.com/rtmbot/videobot/internal/video/source"
	"github.com/rtmbot/videobot/internal/video/transcode"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var preview bool
	var previewAddr string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the registered bot against the configured bus",
		Long: `Connects to the messaging bus, decodes the stream, dispatches batches
to the bot registered via cmd.RegisterBot, and publishes the analysis/
debug/control messages it emits. Blocks until a terminal signal is
received or the pipeline fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			verbose, _ := c.Flags().GetBool("verbose")
			util.SetVerbose(verbose)
			return runBot(preview, previewAddr, metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "serve a live WebRTC preview of the transcoded VP9 output")
	cmd.Flags().StringVar(&previewAddr, "preview-addr", "localhost:8901", "address the preview signaling endpoint listens on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables it)")
	return cmd
}

func runBot(preview bool, previewAddr, metricsAddr string) error {
	if registeredBot == nil {
		return errors.New("no bot registered: a bot binary must call cmd.RegisterBot before cmd.Execute")
	}
	if registeredDecoder == nil {
		return errors.New("no decoder registered: a bot binary must call cmd.RegisterDecoderFactory before cmd.Execute")
	}
	if preview && registeredEncoder == nil {
		return errors.New("no encoder registered: --preview requires a bot binary to call cmd.RegisterEncoderFactory before cmd.Execute")
	}

	metricsReg := metrics.Global()
	channels := config.MessagingChannels()

	if metricsAddr != "" {
		metricsServer := startMetricsEndpoint(metricsAddr, metricsReg.Gatherer())
		defer metricsServer.Close()
		fmt.Printf("%s Prometheus metrics at %s\n", color.CyanString("serving"), color.CyanString("http://"+metricsAddr+"/metrics"))
	}

	client := messaging.NewResilientClient(wsclient.Factory(wsclient.Config{URL: config.MessagingEndpoint()}), func(err error) {
		util.GetLogger().Error("resilient messaging client restart failed fatally", "error", err)
	})
	if err := client.Start(); err != nil {
		return errors.Wrap(err, "starting messaging client")
	}
	defer client.Stop()
	fmt.Println(color.GreenString("connected"), "to messaging bus")

	encoded := source.BusSource(client, channels.Metadata, channels.Frames)
	decoded := decode.New(encoded, registeredDecoder(), registeredBot.PixelFormat, metricsReg)

	if preview {
		previewSrv, track, err := sink.NewPreviewServer()
		if err != nil {
			return errors.Wrap(err, "starting preview server")
		}
		defer previewSrv.Close()

		var previewFrames streams.Publisher[video.OwnedImageFrame]
		decoded, previewFrames = teeOne(decoded)

		previewEncoded := transcode.VP9(previewFrames, registeredEncoder(), registeredBot.PixelFormat)
		previewSink := sink.NewPreviewSink(track, time.Second/30)

		go func() {
			if err := previewSink.Run(previewEncoded); err != nil {
				util.GetLogger().Warn("preview pipeline stopped", "error", err)
			}
		}()

		mux := http.NewServeMux()
		mux.HandleFunc("/offer", previewSrv.Handler())
		previewServer := &http.Server{Addr: previewAddr, Handler: mux}
		go func() {
			if err := previewServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				util.GetLogger().Warn("preview signaling server stopped", "error", err)
			}
		}()
		defer previewServer.Close()

		fmt.Printf("%s live preview signaling at %s\n", color.CyanString("serving"), color.CyanString("http://"+previewAddr+"/offer"))
	}

	batched := streams.Map(decoded, func(f video.OwnedImageFrame) bot.Input {
		return bot.NewBatchInput([]video.OwnedImageFrame{f})
	})
	merged := bot.MergeControl(batched, client, channels.Control)

	inst := bot.NewFromDescriptor(*registeredBot, metricsReg)
	outputs := bot.RunBot(merged, inst)
	guarded := streams.SignalBreaker(outputs, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	busSink := sink.NewBusSink(client, sink.Channels{
		Analysis: channels.Analysis,
		Debug:    channels.Debug,
		Control:  channels.Control,
	})
	return busSink.Run(guarded)
}

// teeOne is streams.Tee specialized to a single secondary, the shape
// run's optional preview branch needs.
func teeOne(pub streams.Publisher[video.OwnedImageFrame]) (primary, secondary streams.Publisher[video.OwnedImageFrame]) {
	p, secs := streams.Tee(pub, 1)
	return p, secs[0]
}
