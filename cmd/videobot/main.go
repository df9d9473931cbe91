// Command videobot is the CLI entrypoint: "videobot run" drives a bot
// pipeline, "videobot record" drives the recorder variant. A bot author
// links their own main package against github.com/rtmbot/videobot/cmd,
// calling cmd.RegisterBot and cmd.RegisterDecoderFactory before
// cmd.Execute — this binary on its own exposes "record" and a "run" that
// reports the missing registration as a startup error.
package main

import (
	"os"

	"github.com/rtmbot/videobot/cmd"
	"github.com/rtmbot/videobot/internal/util"
)

func main() {
	util.SetupGlobalLogger()
	if err := cmd.Execute(); err != nil {
		util.GetLogger().Error("videobot exited with error", "error", err)
		os.Exit(1)
	}
}
