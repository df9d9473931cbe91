// Package transcode hosts the VP9 re-encode stage, the mirror image of the
// decode stage: it turns owned image frames back into encoded packets via
// an injected codec.Encoder collaborator.
package transcode

import (
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/codec"
)

// VP9 wraps encoder into a Publisher[video.EncodedPacket]: on the first
// incoming frame it initializes the encoder and emits a codec-parameters
// packet ahead of that frame's output, then re-encodes every incoming
// frame into one or more encoded packets.
func VP9(pub streams.Publisher[video.OwnedImageFrame], encoder codec.Encoder, format video.PixelFormat) streams.Publisher[video.EncodedPacket] {
	return streams.PublisherFunc[video.EncodedPacket](func(downstream streams.Subscriber[video.EncodedPacket]) {
		s := &vp9Stage{encoder: encoder, format: format, downstream: downstream}
		pub.Subscribe(s)
	})
}

type vp9Stage struct {
	encoder    codec.Encoder
	format     video.PixelFormat
	downstream streams.Subscriber[video.EncodedPacket]
	upstream   streams.Subscription

	initialized  bool
	buffer       []video.EncodedPacket
	demand       int64
	draining     bool
	upstreamDone bool
	cancelled    bool
	completed    bool
}

func (s *vp9Stage) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	s.downstream.OnSubscribe(&vp9Subscription{s: s})
}

func (s *vp9Stage) OnNext(frame video.OwnedImageFrame) {
	if s.cancelled || s.completed {
		return
	}
	if !s.initialized {
		params, err := s.encoder.Init(s.format)
		if err != nil {
			s.fail(errors.Wrap(err, "initializing VP9 encoder"))
			return
		}
		s.initialized = true
		s.buffer = append(s.buffer, video.NewParamsPacket(params))
	}
	encoded, err := s.encoder.Encode(frame)
	if err != nil {
		s.fail(errors.Wrap(err, "VP9 encode failed"))
		return
	}
	for _, e := range encoded {
		s.buffer = append(s.buffer, video.NewFramePacket(e))
	}
}

func (s *vp9Stage) OnComplete() {
	if s.cancelled || s.completed {
		return
	}
	s.upstreamDone = true
}

func (s *vp9Stage) OnError(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	s.downstream.OnError(err)
}

func (s *vp9Stage) fail(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
	s.downstream.OnError(err)
}

func (s *vp9Stage) request(n int64) {
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
			packet := s.buffer[0]
			s.buffer = s.buffer[1:]
			s.demand--
			s.downstream.OnNext(packet)
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

func (s *vp9Stage) cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}

type vp9Subscription struct {
	s *vp9Stage
}

func (sub *vp9Subscription) Request(n int64) { sub.s.request(n) }
func (sub *vp9Subscription) Cancel()         { sub.s.cancel() }
