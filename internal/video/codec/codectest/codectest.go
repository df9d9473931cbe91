// Package codectest provides deterministic, in-memory fakes for
// codec.Decoder and codec.Encoder so the decode and transcode stages can
// be exercised without a real bitstream codec, in the spirit of the
// original tree's empty_bot-style test fixtures.
package codectest

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/video"
)

// FakeDecoder treats every encoded frame's Data as already being the
// concatenated plane bytes for a single plane of the given width/height;
// it never needs real bitstream parsing. A non-empty failing magic (see
// NewFakeDecoder) makes every Decode call for a frame whose Data starts
// with it fail instead of decoding (simulating a bad frame).
type FakeDecoder struct {
	format       video.PixelFormat
	width        int
	height       int
	failingMagic []byte
	pending      []video.OwnedImageFrame
	closed       bool
}

// NewFakeDecoder returns a decoder that will fail to decode any frame
// whose data begins with failingMagic (nil disables this).
func NewFakeDecoder(failingMagic []byte) *FakeDecoder {
	return &FakeDecoder{failingMagic: failingMagic}
}

func (d *FakeDecoder) Init(params video.CodecParameters, format video.PixelFormat) error {
	if d.closed {
		return errors.New("decoder closed")
	}
	w, h, err := parseDimensions(params.ExtraData)
	if err != nil {
		return err
	}
	d.width, d.height, d.format = w, h, format
	d.pending = nil
	return nil
}

func (d *FakeDecoder) Decode(frame video.EncodedFrame) ([]video.OwnedImageFrame, error) {
	if d.width == 0 {
		return nil, errors.New("decode called before Init")
	}
	if len(d.failingMagic) > 0 && bytes.HasPrefix(frame.Data, d.failingMagic) {
		return nil, errors.Errorf("fake decode failure on frame %s", frame.FrameID)
	}
	out := video.OwnedImageFrame{
		FrameID: frame.FrameID,
		Width:   d.width,
		Height:  d.height,
	}
	out.PlaneStrides[0] = d.width
	out.PlaneData[0] = append([]byte(nil), frame.Data...)
	return []video.OwnedImageFrame{out}, nil
}

func (d *FakeDecoder) Drain() ([]video.OwnedImageFrame, error) {
	pending := d.pending
	d.pending = nil
	return pending, nil
}

func (d *FakeDecoder) Close() error {
	d.closed = true
	return nil
}

// parseDimensions reads "WxH" out of extraData; it is the codectest
// stand-in for paramparse.H264Dimensions, avoiding a real SPS fixture.
func parseDimensions(extraData []byte) (int, int, error) {
	parts := bytes.SplitN(extraData, []byte("x"), 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("fake codec params must be WxH, got %q", extraData)
	}
	w, err := atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	h, err := atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func atoi(b []byte) (int, error) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("invalid digit in %q", b)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// FakeEncoder emits one EncodedFrame per input frame, copying plane 0 back
// out verbatim, so transcode-stage tests can assert pass-through shape
// without a real VP9 encoder.
type FakeEncoder struct {
	initialized bool
}

func (e *FakeEncoder) Init(format video.PixelFormat) (video.CodecParameters, error) {
	e.initialized = true
	return video.CodecParameters{Name: "vp9-fake"}, nil
}

func (e *FakeEncoder) Encode(frame video.OwnedImageFrame) ([]video.EncodedFrame, error) {
	if !e.initialized {
		return nil, errors.New("encode called before Init")
	}
	return []video.EncodedFrame{{
		FrameID:  frame.FrameID,
		Data:     append([]byte(nil), frame.PlaneData[0]...),
		KeyFrame: true,
	}}, nil
}

func (e *FakeEncoder) Close() error { return nil }
