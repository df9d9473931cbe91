// Package decode turns a stream of encoded packets into a stream of owned
// image frames via an injected codec.Decoder, latching geometry once and
// treating a later mismatch as a contract violation.
package decode

import (
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/metrics"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/codec"
)

// New wraps decoder into a Publisher[video.OwnedImageFrame] fed by pub.
// format selects the pixel layout the decoder is asked to produce.
// metricsReg may be nil, in which case decode failures are only logged.
func New(pub streams.Publisher[video.EncodedPacket], decoder codec.Decoder, format video.PixelFormat, metricsReg *metrics.Registry) streams.Publisher[video.OwnedImageFrame] {
	return streams.PublisherFunc[video.OwnedImageFrame](func(downstream streams.Subscriber[video.OwnedImageFrame]) {
		s := &stage{
			decoder:    decoder,
			format:     format,
			downstream: downstream,
			metrics:    metricsReg,
			log:        util.GetLogger(),
		}
		pub.Subscribe(s)
	})
}

type stage struct {
	decoder    codec.Decoder
	format     video.PixelFormat
	downstream streams.Subscriber[video.OwnedImageFrame]
	upstream   streams.Subscription
	metrics    *metrics.Registry
	log        interface {
		Warn(msg string, args ...any)
	}

	metadata     video.ImageMetadata
	buffer       []video.OwnedImageFrame
	demand       int64
	draining     bool
	upstreamDone bool
	cancelled    bool
	completed    bool
	codecName    string
}

func (s *stage) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	s.downstream.OnSubscribe(&stageSubscription{s: s})
}

func (s *stage) OnNext(packet video.EncodedPacket) {
	if s.cancelled || s.completed {
		return
	}
	switch {
	case packet.IsParams():
		// Codec-parameters change mid-stream tears down and re-initializes
		// the decoder; any partial output buffered so far is discarded.
		s.buffer = nil
		s.codecName = packet.Params.Name
		if err := s.decoder.Init(*packet.Params, s.format); err != nil {
			s.fail(errors.Wrap(err, "initializing decoder"))
		}
	case packet.IsFrame():
		frames, err := s.decoder.Decode(*packet.Frame)
		if err != nil {
			s.log.Warn("dropping frame: decode failed", "frame_id", packet.Frame.FrameID.String(), "error", err)
			if s.metrics != nil {
				s.metrics.DecodeFailures.WithLabelValues(s.codecName).Inc()
			}
			return
		}
		s.appendFrames(frames)
	}
}

func (s *stage) OnComplete() {
	if s.cancelled || s.completed {
		return
	}
	s.upstreamDone = true
	frames, err := s.decoder.Drain()
	if err != nil {
		s.fail(errors.Wrap(err, "draining decoder"))
		return
	}
	s.appendFrames(frames)
}

func (s *stage) OnError(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	s.downstream.OnError(err)
}

func (s *stage) appendFrames(frames []video.OwnedImageFrame) {
	for _, f := range frames {
		candidate := video.ImageMetadata{
			Width:        f.Width,
			Height:       f.Height,
			PlaneStrides: f.PlaneStrides,
			Format:       s.format,
		}
		if err := s.metadata.Latch(candidate); err != nil {
			s.fail(err)
			return
		}
		s.buffer = append(s.buffer, f)
	}
}

func (s *stage) fail(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
	s.downstream.OnError(err)
}

// request is invoked by stageSubscription.Request. It synchronously pulls
// one packet at a time from upstream, draining any frames that decode
// produces into the buffer, until demand is exhausted or upstream is done.
func (s *stage) request(n int64) {
	if n <= 0 || s.cancelled || s.completed {
		return
	}
	s.demand += n
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	for !s.cancelled && !s.completed {
		if len(s.buffer) > 0 && s.demand > 0 {
			frame := s.buffer[0]
			s.buffer = s.buffer[1:]
			s.demand--
			s.downstream.OnNext(frame)
			continue
		}
		if len(s.buffer) == 0 && s.upstreamDone {
			s.completed = true
			s.downstream.OnComplete()
			return
		}
		if s.demand <= 0 {
			return
		}
		s.upstream.Request(1)
	}
}

func (s *stage) cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}

type stageSubscription struct {
	s *stage
}

func (sub *stageSubscription) Request(n int64) { sub.s.request(n) }
func (sub *stageSubscription) Cancel()         { sub.s.cancel() }
