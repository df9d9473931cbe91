// Package video holds the data model shared by the source, decode,
// transcode, bot and sink stages: frame identifiers, image geometry,
// owned decoded frames, and the encoded-packet sum type that flows
// between them.
package video

import (
	"fmt"

	"github.com/pkg/errors"
)

// FrameID identifies the half-open range of bus sequence numbers [i1, i2)
// that compose a frame. (0, 0) means unassigned; i1 < 0 means synthetic /
// no frame context.
type FrameID struct {
	I1 int64
	I2 int64
}

// Unassigned reports whether this is the zero frame id.
func (f FrameID) Unassigned() bool {
	return f.I1 == 0 && f.I2 == 0
}

// Synthetic reports whether this frame id carries no real frame context.
func (f FrameID) Synthetic() bool {
	return f.I1 < 0
}

func (f FrameID) String() string {
	return fmt.Sprintf("(%d,%d)", f.I1, f.I2)
}

// PixelFormat enumerates the decoded pixel layouts the decode stage may be
// asked to produce.
type PixelFormat int

const (
	PixelFormatRGB0 PixelFormat = iota
	PixelFormatRGBA
	PixelFormatBGR
	PixelFormatI420
	PixelFormatNV12
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB0:
		return "RGB0"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGR:
		return "BGR"
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "UNKNOWN"
	}
}

const maxPlanes = 4

// ImageMetadata describes the geometry shared by every frame in a live
// pipeline. It is latched once by the first frame the decoder produces;
// any later frame with differing geometry is a contract violation.
type ImageMetadata struct {
	Width        int
	Height       int
	PlaneStrides [maxPlanes]int
	Format       PixelFormat
}

// Latch sets m from the first observed frame, or verifies that a later
// frame's geometry matches what was already latched. It returns an error
// wrapping ErrContractViolation when geometry has changed.
func (m *ImageMetadata) Latch(candidate ImageMetadata) error {
	if m.Width == 0 && m.Height == 0 {
		*m = candidate
		return nil
	}
	if m.Width != candidate.Width || m.Height != candidate.Height || m.Format != candidate.Format {
		return errors.Wrapf(ErrContractViolation,
			"image geometry changed after latch: had %dx%d (%s), got %dx%d (%s)",
			m.Width, m.Height, m.Format, candidate.Width, candidate.Height, candidate.Format)
	}
	return nil
}

// OwnedImageFrame is a fully decoded frame with up to four owned planes.
// Any plane may be empty (e.g. I420's chroma planes are never empty, but
// a format with fewer planes leaves the trailing ones nil).
type OwnedImageFrame struct {
	FrameID      FrameID
	Width        int
	Height       int
	PlaneStrides [maxPlanes]int
	PlaneData    [maxPlanes][]byte
}

// CodecParameters announces the start of a stream or a change of codec
// parameters: codec name plus any extra initialization data (e.g. SPS/PPS
// for H.264).
type CodecParameters struct {
	Name      string
	ExtraData []byte
}

// EncodedFrame is a fully assembled, still-encoded frame as produced by a
// source or consumed by a container sink.
type EncodedFrame struct {
	FrameID     FrameID
	Data        []byte
	KeyFrame    bool
	ArrivalTime int64 // unix nanos
}

// EncodedPacket is the sum type that flows out of every source: either a
// codec-parameters announcement or a fully assembled encoded frame.
// Exactly one of Params/Frame is non-nil.
type EncodedPacket struct {
	Params *CodecParameters
	Frame  *EncodedFrame
}

// NewParamsPacket builds an EncodedPacket carrying codec parameters.
func NewParamsPacket(p CodecParameters) EncodedPacket {
	return EncodedPacket{Params: &p}
}

// NewFramePacket builds an EncodedPacket carrying an encoded frame.
func NewFramePacket(f EncodedFrame) EncodedPacket {
	return EncodedPacket{Frame: &f}
}

// IsParams reports whether this packet carries codec parameters.
func (p EncodedPacket) IsParams() bool { return p.Params != nil }

// IsFrame reports whether this packet carries an encoded frame.
func (p EncodedPacket) IsFrame() bool { return p.Frame != nil }

// NetworkFrame is a single chunk of an encoded frame as received on the
// bus frames channel, before assembly by source.BusSource.
type NetworkFrame struct {
	FrameID        FrameID
	Chunk          int
	Chunks         int
	Data           []byte
	KeyFrame       bool
	ArrivalTime    int64
	CodecParamsRef string
}

// ErrContractViolation marks a fatal, unrecoverable protocol violation:
// geometry changing after latch, a missing control callback with non-nil
// configuration, or non-object message data. It is returned as an ordinary
// error and travels downstream as the pipeline's terminal error; nothing
// aborts the process at the point of violation. cmd's entrypoint exits
// with status 1 on it, as on any other error.
var ErrContractViolation = errors.New("contract violation")
