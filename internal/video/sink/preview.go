package sink

import (
	"math"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
)

// PreviewSink writes the VP9 output of internal/video/transcode onto a
// WebRTC track for an optional live-preview viewer. Encoded samples are
// handed straight to a pion/webrtc TrackLocalStaticSample via
// WriteSample, unfragmented — pion packetizes VP9 payloads itself, so no
// manual RTP framing is needed here.
type PreviewSink struct {
	track      *webrtc.TrackLocalStaticSample
	log        *util.Logger
	frameDur   time.Duration
	upstream   streams.Subscription
	cancelled  bool
	done       chan error
}

// NewPreviewSink wraps track, the local WebRTC track a peer connection's
// sender will read samples from. frameDuration is used as the sample
// duration hint (e.g. time.Second/30 for 30fps).
func NewPreviewSink(track *webrtc.TrackLocalStaticSample, frameDuration time.Duration) *PreviewSink {
	return &PreviewSink{
		track:    track,
		log:      util.GetCompatLogger(),
		frameDur: frameDuration,
		done:     make(chan error, 1),
	}
}

// Run subscribes to pub (the transcode stage's encoded output) and blocks
// until upstream completes or errors.
func (s *PreviewSink) Run(pub streams.Publisher[video.EncodedPacket]) error {
	pub.Subscribe(s)
	return <-s.done
}

func (s *PreviewSink) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	sub.Request(math.MaxInt64)
}

func (s *PreviewSink) OnNext(pkt video.EncodedPacket) {
	if s.cancelled || !pkt.IsFrame() {
		return
	}
	sample := media.Sample{Data: pkt.Frame.Data, Duration: s.frameDur}
	if err := s.track.WriteSample(sample); err != nil {
		s.log.Warnf("preview track write failed: %v", err)
	}
}

func (s *PreviewSink) OnComplete() {
	select {
	case s.done <- nil:
	default:
	}
}

func (s *PreviewSink) OnError(err error) {
	select {
	case s.done <- errors.Wrap(err, "preview sink upstream"):
	default:
	}
}

// Cancel stops the sink from consuming further elements. Idempotent.
func (s *PreviewSink) Cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}
