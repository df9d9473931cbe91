package cmd

import (
	"github.com/rtmbot/videobot/internal/bot"
	"github.com/rtmbot/videobot/internal/video/codec"
)

// DecoderFactory constructs a fresh codec.Decoder, called once per "run"
// invocation. A bot binary registers one before calling Execute, since
// codec bitstream semantics come from the embedding binary rather than
// this package.
type DecoderFactory func() codec.Decoder

// EncoderFactory constructs a fresh codec.Encoder, called once per "run"
// invocation when "--preview" is set. Only needed by bot binaries that
// opt into the live-preview track.
type EncoderFactory func() codec.Encoder

var (
	registeredBot     *bot.Descriptor
	registeredDecoder DecoderFactory
	registeredEncoder EncoderFactory
)

// RegisterBot records the descriptor the "run" subcommand will construct
// a bot.Instance from. Call this from a bot binary's main package before
// cmd.Execute.
func RegisterBot(d bot.Descriptor) {
	registeredBot = &d
}

// RegisterDecoderFactory records the codec.Decoder factory "run" uses to
// stand up the decode stage.
func RegisterDecoderFactory(f DecoderFactory) {
	registeredDecoder = f
}

// RegisterEncoderFactory records the codec.Encoder factory "run" uses to
// stand up the VP9 transcode stage behind "--preview".
func RegisterEncoderFactory(f EncoderFactory) {
	registeredEncoder = f
}
