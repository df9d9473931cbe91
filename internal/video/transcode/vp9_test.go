package transcode

import (
	"testing"

	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/codec/codectest"
	"github.com/stretchr/testify/require"
)

type packetRecorder struct {
	items     []video.EncodedPacket
	completed bool
	sub       streams.Subscription
}

func (r *packetRecorder) OnSubscribe(sub streams.Subscription) { r.sub = sub }
func (r *packetRecorder) OnNext(p video.EncodedPacket)          { r.items = append(r.items, p) }
func (r *packetRecorder) OnComplete()                           { r.completed = true }
func (r *packetRecorder) OnError(err error)                     {}

func TestVP9EmitsParamsBeforeFirstFrame(t *testing.T) {
	frames := []video.OwnedImageFrame{
		{FrameID: video.FrameID{I1: 1, I2: 2}, PlaneData: [4][]byte{[]byte("abc")}},
		{FrameID: video.FrameID{I1: 2, I2: 3}, PlaneData: [4][]byte{[]byte("def")}},
	}
	pub := VP9(streams.FromSlice(frames), &codectest.FakeEncoder{}, video.PixelFormatI420)
	rec := &packetRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(10)
	require.True(t, rec.completed)
	require.Len(t, rec.items, 3)
	require.True(t, rec.items[0].IsParams())
	require.True(t, rec.items[1].IsFrame())
	require.Equal(t, video.FrameID{I1: 1, I2: 2}, rec.items[1].Frame.FrameID)
	require.Equal(t, video.FrameID{I1: 2, I2: 3}, rec.items[2].Frame.FrameID)
}

func TestVP9RespectsDemand(t *testing.T) {
	frames := []video.OwnedImageFrame{
		{FrameID: video.FrameID{I1: 1, I2: 2}, PlaneData: [4][]byte{[]byte("abc")}},
	}
	pub := VP9(streams.FromSlice(frames), &codectest.FakeEncoder{}, video.PixelFormatI420)
	rec := &packetRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(1)
	require.Len(t, rec.items, 1)
	require.True(t, rec.items[0].IsParams())
	require.False(t, rec.completed)

	rec.sub.Request(1)
	require.Len(t, rec.items, 2)
	require.True(t, rec.completed)
}
