package decode

import (
	"testing"

	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/codec/codectest"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	items     []video.OwnedImageFrame
	completed bool
	err       error
	sub       streams.Subscription
}

func (r *frameRecorder) OnSubscribe(sub streams.Subscription) { r.sub = sub }
func (r *frameRecorder) OnNext(f video.OwnedImageFrame)        { r.items = append(r.items, f) }
func (r *frameRecorder) OnComplete()                           { r.completed = true }
func (r *frameRecorder) OnError(err error)                     { r.err = err }

func TestStageDecodesFramesAndLatchesGeometry(t *testing.T) {
	packets := []video.EncodedPacket{
		video.NewParamsPacket(video.CodecParameters{Name: "fake", ExtraData: []byte("640x480")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte("aaaa")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 2, I2: 3}, Data: []byte("bbbb")}),
	}

	pub := New(streams.FromSlice(packets), codectest.NewFakeDecoder(nil), video.PixelFormatI420, nil)
	rec := &frameRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(10)
	require.NoError(t, rec.err)
	require.True(t, rec.completed)
	require.Len(t, rec.items, 2)
	require.Equal(t, 640, rec.items[0].Width)
	require.Equal(t, video.FrameID{I1: 2, I2: 3}, rec.items[1].FrameID)
}

func TestStageDropsFramesThatFailToDecode(t *testing.T) {
	packets := []video.EncodedPacket{
		video.NewParamsPacket(video.CodecParameters{Name: "fake", ExtraData: []byte("320x240")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte("BAD-frame")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 2, I2: 3}, Data: []byte("good")}),
	}

	pub := New(streams.FromSlice(packets), codectest.NewFakeDecoder([]byte("BAD")), video.PixelFormatI420, nil)
	rec := &frameRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(10)
	require.True(t, rec.completed)
	require.Len(t, rec.items, 1)
	require.Equal(t, video.FrameID{I1: 2, I2: 3}, rec.items[0].FrameID)
}

func TestStageRejectsGeometryChangeAfterLatch(t *testing.T) {
	packets := []video.EncodedPacket{
		video.NewParamsPacket(video.CodecParameters{Name: "fake", ExtraData: []byte("640x480")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte("aaaa")}),
		video.NewParamsPacket(video.CodecParameters{Name: "fake", ExtraData: []byte("1280x720")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 2, I2: 3}, Data: []byte("bbbb")}),
	}

	pub := New(streams.FromSlice(packets), codectest.NewFakeDecoder(nil), video.PixelFormatI420, nil)
	rec := &frameRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(10)
	require.Error(t, rec.err)
	require.ErrorIs(t, rec.err, video.ErrContractViolation)
	require.Len(t, rec.items, 1)
	require.False(t, rec.completed)
}

func TestStageRespectsDemand(t *testing.T) {
	packets := []video.EncodedPacket{
		video.NewParamsPacket(video.CodecParameters{Name: "fake", ExtraData: []byte("10x10")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte("a")}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 2, I2: 3}, Data: []byte("b")}),
	}

	pub := New(streams.FromSlice(packets), codectest.NewFakeDecoder(nil), video.PixelFormatI420, nil)
	rec := &frameRecorder{}
	pub.Subscribe(rec)

	rec.sub.Request(1)
	require.Len(t, rec.items, 1)
	require.False(t, rec.completed)

	rec.sub.Request(1)
	require.Len(t, rec.items, 2)
	require.True(t, rec.completed)
}
