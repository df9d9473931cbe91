// Package sink provides the terminal consumers of a pipeline: a bus sink
// that publishes bot.Output messages onto per-kind channels, and a
// container sink that muxes encoded packets into a WebM file. Both
// implement streams.Subscriber directly rather than Publisher — they are
// the end of the line, driven with unbounded demand once subscribed.
package sink

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/bot"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
)

// Channels names the three outbound bus channels a BusSink publishes to,
// keyed by bot.Kind.
type Channels struct {
	Analysis string
	Debug    string
	Control  string
}

func (c Channels) forKind(k bot.Kind) string {
	switch k {
	case bot.Analysis:
		return c.Analysis
	case bot.Debug:
		return c.Debug
	case bot.Control:
		return c.Control
	default:
		return ""
	}
}

// EscapeChannelName escapes slashes in a channel name so it can be used
// as (part of) a container output file path: "/" becomes "{slash}".
func EscapeChannelName(name string) string {
	return strings.ReplaceAll(name, "/", "{slash}")
}

// BusSink publishes bot.Output messages onto the channel matching their
// kind. Frames are not published by the bot variant of the pipeline and
// are silently dropped here.
type BusSink struct {
	client   messaging.Client
	channels Channels
	log      interface {
		Warn(msg string, args ...any)
		Debug(msg string, args ...any)
	}

	upstream  streams.Subscription
	cancelled bool
	done      chan error
}

// NewBusSink constructs a BusSink publishing via client onto channels.
func NewBusSink(client messaging.Client, channels Channels) *BusSink {
	return &BusSink{
		client:   client,
		channels: channels,
		log:      util.GetLogger(),
		done:     make(chan error, 1),
	}
}

// Run subscribes to pub, requests unbounded demand, and blocks until the
// upstream completes or errors.
func (s *BusSink) Run(pub streams.Publisher[bot.Output]) error {
	pub.Subscribe(s)
	return <-s.done
}

func (s *BusSink) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	sub.Request(math.MaxInt64)
}

func (s *BusSink) OnNext(out bot.Output) {
	if s.cancelled {
		return
	}
	if out.IsFrame() {
		s.log.Debug("bus sink dropping frame output; bot pipelines do not publish frames")
		return
	}
	msg := out.Message
	channel := s.channels.forKind(msg.Kind)
	if channel == "" {
		s.log.Warn("no channel configured for message kind", "kind", msg.Kind.String())
		return
	}
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		s.log.Warn("dropping message that failed to marshal", "kind", msg.Kind.String(), "error", err)
		return
	}
	s.client.Publish(channel, payload, messaging.PublishCallbacks{
		OnError: func(err error) {
			s.log.Warn("publish failed", "channel", channel, "error", err)
		},
	})
}

func (s *BusSink) OnComplete() {
	select {
	case s.done <- nil:
	default:
	}
}

func (s *BusSink) OnError(err error) {
	select {
	case s.done <- errors.Wrap(err, "bus sink upstream"):
	default:
	}
}

// Cancel stops the sink from consuming further elements. Idempotent.
func (s *BusSink) Cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}
