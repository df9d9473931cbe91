package source

import (
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
)

// CameraSource would capture from a local camera device. Live capture
// device handling is out of scope for this bot: it runs headless
// against prerecorded or bus-delivered video, so this is a documented
// stub rather than a real implementation.
func CameraSource(device string) streams.Publisher[video.EncodedPacket] {
	return streams.Failed[video.EncodedPacket](errors.Errorf("camera capture not supported (device %q)", device))
}

// URLSource would fetch an encoded stream from an arbitrary URL (RTSP,
// HTTP-MJPEG, etc). Only the bus and file sources are wired into the bot
// runtime; this stub documents the extension point without pulling in
// a streaming-protocol client nothing in this repository exercises.
func URLSource(url string) streams.Publisher[video.EncodedPacket] {
	return streams.Failed[video.EncodedPacket](errors.Errorf("URL capture not supported (url %q)", url))
}
