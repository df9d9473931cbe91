package sink

import (
	"encoding/json"
	"testing"

	"github.com/rtmbot/videobot/internal/bot"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/stretchr/testify/require"
)

func video0() video.OwnedImageFrame {
	return video.OwnedImageFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Width: 2, Height: 2}
}

type fakePublishClient struct {
	published []published
}

type published struct {
	channel string
	data    map[string]any
}

func (f *fakePublishClient) Start() error { return nil }
func (f *fakePublishClient) Stop() error  { return nil }
func (f *fakePublishClient) Publish(channel string, data []byte, cb messaging.PublishCallbacks) {
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	f.published = append(f.published, published{channel: channel, data: m})
	if cb.OnOK != nil {
		cb.OnOK()
	}
}
func (f *fakePublishClient) Subscribe(channel, subscriptionID string, data messaging.DataCallbacks, req messaging.RequestCallbacks, opts messaging.SubscribeOptions) {
}
func (f *fakePublishClient) Unsubscribe(subscriptionID string, cb messaging.PublishCallbacks) {}

func TestBusSinkRoutesByKind(t *testing.T) {
	client := &fakePublishClient{}
	s := NewBusSink(client, Channels{Analysis: "bot/analysis", Debug: "bot/debug", Control: "bot/control"})

	outs := []bot.Output{
		bot.NewMessageOutput(bot.Message{Kind: bot.Analysis, Data: map[string]any{"x": 1.0}}),
		bot.NewMessageOutput(bot.Message{Kind: bot.Debug, Data: map[string]any{"y": 2.0}}),
		bot.NewMessageOutput(bot.Message{Kind: bot.Control, Data: map[string]any{"z": 3.0}}),
	}
	err := s.Run(streams.FromSlice(outs))
	require.NoError(t, err)
	require.Len(t, client.published, 3)
	require.Equal(t, "bot/analysis", client.published[0].channel)
	require.Equal(t, "bot/debug", client.published[1].channel)
	require.Equal(t, "bot/control", client.published[2].channel)
	require.Equal(t, 1.0, client.published[0].data["x"])
}

func TestBusSinkDropsFrameOutputs(t *testing.T) {
	client := &fakePublishClient{}
	s := NewBusSink(client, Channels{Analysis: "a", Debug: "d", Control: "c"})

	outs := []bot.Output{
		bot.NewFrameOutput(video0()),
		bot.NewMessageOutput(bot.Message{Kind: bot.Analysis, Data: map[string]any{"ok": true}}),
	}
	err := s.Run(streams.FromSlice(outs))
	require.NoError(t, err)
	require.Len(t, client.published, 1)
}

func TestBusSinkPropagatesUpstreamError(t *testing.T) {
	client := &fakePublishClient{}
	s := NewBusSink(client, Channels{})
	boom := failErr{}
	err := s.Run(streams.Failed[bot.Output](boom))
	require.Error(t, err)
}

func TestEscapeChannelNameReplacesSlashes(t *testing.T) {
	require.Equal(t, "bot{slash}analysis", EscapeChannelName("bot/analysis"))
	require.Equal(t, "no-slashes", EscapeChannelName("no-slashes"))
}

type failErr struct{}

func (failErr) Error() string { return "boom" }
