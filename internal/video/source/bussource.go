// Package source provides video.EncodedPacket producers: a live bus
// subscriber that reassembles chunked frames, a file-backed source for
// recorded packet logs, and documented stubs for camera/URL capture.
package source

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
)

// metadataMessage is the inbound metadata-channel payload shape.
type metadataMessage struct {
	Codec            string `json:"codec"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	ExtraDataBase64  string `json:"extra_data_base64"`
	AdditionalData   any    `json:"additional_data,omitempty"`
}

// frameMessage is the inbound frames-channel payload shape: one chunk of
// one encoded frame.
type frameMessage struct {
	I      [2]int64 `json:"i"`
	Chunk  int      `json:"chunk"`
	Chunks int      `json:"chunks"`
	D      string   `json:"d"`
	Key    bool     `json:"key"`
	T      int64    `json:"t"`
}

// BusSource subscribes to a metadata channel and a frames channel via a
// messaging.Client and emits a stream of video.EncodedPacket: a
// codec-parameters packet on the first metadata and every change, and an
// assembled encoded-frame packet once every chunk of a frame has
// arrived. Frames whose metadata hasn't yet been observed are discarded.
func BusSource(client messaging.Client, metadataChannel, framesChannel string) streams.Publisher[video.EncodedPacket] {
	return streams.PublisherFunc[video.EncodedPacket](func(downstream streams.Subscriber[video.EncodedPacket]) {
		s := &busSource{
			downstream:      downstream,
			client:          client,
			metadataChannel: metadataChannel,
			framesChannel:   framesChannel,
			log:             util.GetLogger(),
		}
		s.start()
	})
}

type partialFrame struct {
	id       video.FrameID
	total    int
	received int
	data     []byte
	key      bool
	arrival  int64
}

type busSource struct {
	downstream      streams.Subscriber[video.EncodedPacket]
	client          messaging.Client
	metadataChannel string
	framesChannel   string
	log             interface {
		Warn(msg string, args ...any)
	}

	mu             sync.Mutex
	buffer         []video.EncodedPacket
	demand         int64
	draining       bool
	cancelled      bool
	completed      bool
	metadataSubID  string
	framesSubID    string

	haveParams    bool
	lastParams    video.CodecParameters
	current       *partialFrame
}

func (s *busSource) start() {
	s.downstream.OnSubscribe(&busSourceSubscription{s: s})

	s.metadataSubID = uuid.NewString()
	s.client.Subscribe(s.metadataChannel, s.metadataSubID, messaging.DataCallbacks{
		OnData: s.onMetadata,
	}, messaging.RequestCallbacks{
		OnError: func(err error) { s.fail(errors.Wrap(err, "subscribing to metadata channel")) },
	}, messaging.SubscribeOptions{})

	s.framesSubID = uuid.NewString()
	s.client.Subscribe(s.framesChannel, s.framesSubID, messaging.DataCallbacks{
		OnData: s.onFrame,
	}, messaging.RequestCallbacks{
		OnError: func(err error) { s.fail(errors.Wrap(err, "subscribing to frames channel")) },
	}, messaging.SubscribeOptions{})
}

func (s *busSource) onMetadata(msg messaging.Message) {
	var m metadataMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		s.log.Warn("dropping malformed metadata message", "error", err)
		return
	}
	extra, err := base64.StdEncoding.DecodeString(m.ExtraDataBase64)
	if err != nil {
		s.log.Warn("dropping metadata message with malformed extra_data_base64", "error", err)
		return
	}
	params := video.CodecParameters{Name: m.Codec, ExtraData: extra}

	s.mu.Lock()
	if s.haveParams && paramsEqual(s.lastParams, params) {
		s.mu.Unlock()
		return
	}
	s.haveParams = true
	s.lastParams = params
	s.current = nil // codec change mid-stream discards any in-flight frame
	s.mu.Unlock()

	s.deliver(video.NewParamsPacket(params))
}

func paramsEqual(a, b video.CodecParameters) bool {
	return a.Name == b.Name && string(a.ExtraData) == string(b.ExtraData)
}

func (s *busSource) onFrame(msg messaging.Message) {
	var f frameMessage
	if err := json.Unmarshal(msg.Data, &f); err != nil {
		s.log.Warn("dropping malformed frame message", "error", err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(f.D)
	if err != nil {
		s.log.Warn("dropping frame chunk with malformed data", "error", err)
		return
	}
	id := video.FrameID{I1: f.I[0], I2: f.I[1]}

	s.mu.Lock()
	if !s.haveParams {
		s.mu.Unlock()
		s.log.Warn("dropping frame chunk before metadata observed", "frame_id", id.String())
		return
	}
	if s.current == nil || s.current.id != id {
		if s.current != nil {
			s.log.Warn("dropping partial frame on chunk gap", "dropped_frame_id", s.current.id.String(), "next_frame_id", id.String())
		}
		s.current = &partialFrame{id: id, total: f.Chunks}
	}
	s.current.data = append(s.current.data, data...)
	s.current.received++
	s.current.key = s.current.key || f.Key
	s.current.arrival = f.T

	var complete *video.EncodedFrame
	if s.current.received >= s.current.total {
		complete = &video.EncodedFrame{
			FrameID:     s.current.id,
			Data:        s.current.data,
			KeyFrame:    s.current.key,
			ArrivalTime: s.current.arrival,
		}
		s.current = nil
	}
	s.mu.Unlock()

	if complete != nil {
		s.deliver(video.NewFramePacket(*complete))
	}
}

func (s *busSource) deliver(pkt video.EncodedPacket) {
	s.mu.Lock()
	if s.cancelled || s.completed {
		s.mu.Unlock()
		return
	}
	s.buffer = append(s.buffer, pkt)
	s.mu.Unlock()
	s.pump()
}

func (s *busSource) pump() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for {
		if s.cancelled || s.completed || s.demand <= 0 || len(s.buffer) == 0 {
			break
		}
		item := s.buffer[0]
		s.buffer = s.buffer[1:]
		s.demand--
		s.mu.Unlock()
		s.downstream.OnNext(item)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *busSource) request(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	if s.cancelled || s.completed {
		s.mu.Unlock()
		return
	}
	s.demand += n
	s.mu.Unlock()
	s.pump()
}

func (s *busSource) fail(err error) {
	s.mu.Lock()
	if s.cancelled || s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	s.mu.Unlock()
	s.unsubscribeAll()
	s.downstream.OnError(err)
}

func (s *busSource) cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	s.unsubscribeAll()
}

func (s *busSource) unsubscribeAll() {
	s.client.Unsubscribe(s.metadataSubID, messaging.PublishCallbacks{})
	s.client.Unsubscribe(s.framesSubID, messaging.PublishCallbacks{})
}

type busSourceSubscription struct {
	s *busSource
}

func (sub *busSourceSubscription) Request(n int64) { sub.s.request(n) }
func (sub *busSourceSubscription) Cancel()          { sub.s.cancel() }
