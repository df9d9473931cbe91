// Package codec defines the narrow collaborator interfaces the decode and
// transcode stages delegate actual bitstream work to. Codec bitstream
// semantics are explicitly out of scope for this repository; callers
// inject a Decoder/Encoder implementation (a real one, or the fakes in
// codectest for unit tests).
package codec

import "github.com/rtmbot/videobot/internal/video"

// Decoder turns codec parameters and encoded frames into owned image
// frames of a single requested pixel format. Implementations own any
// underlying decoder context and must be safe to call from a single
// goroutine at a time (the stage built by decode.New never calls
// concurrently).
type Decoder interface {
	// Init (re)initializes the decoder for a codec-parameters change,
	// discarding any buffered partial output.
	Init(params video.CodecParameters, format video.PixelFormat) error

	// Decode feeds one encoded frame and returns zero or more decoded
	// frames it produced as a result (a decoder may buffer internally and
	// emit frames out of lockstep with input).
	Decode(frame video.EncodedFrame) ([]video.OwnedImageFrame, error)

	// Drain flushes any frames buffered inside the decoder, called on
	// upstream completion before the stage propagates completion itself.
	Drain() ([]video.OwnedImageFrame, error)

	// Close releases the decoder context.
	Close() error
}

// Encoder is the transcode-stage counterpart: it consumes owned image
// frames and produces encoded packets in its target codec (VP9 in this
// repository's transcode stage).
type Encoder interface {
	Init(format video.PixelFormat) (video.CodecParameters, error)
	Encode(frame video.OwnedImageFrame) ([]video.EncodedFrame, error)
	Close() error
}
