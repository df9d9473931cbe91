// Package bot implements the bot instance: the state machine that
// batches decoded frames, dispatches them to user-supplied callbacks,
// collects and stamps the messages those callbacks emit, and runs the
// startup/shutdown control protocol around them.
package bot

import "github.com/rtmbot/videobot/internal/video"

// Kind discriminates a bot message's outbound channel.
type Kind int

const (
	Analysis Kind = iota
	Debug
	Control
)

func (k Kind) String() string {
	switch k {
	case Analysis:
		return "ANALYSIS"
	case Debug:
		return "DEBUG"
	case Control:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Message is a single outbound bot message before stamping.
type Message struct {
	Kind    Kind
	Data    map[string]any
	FrameID video.FrameID
}

// Output is the sum type run_bot() emits downstream: either an owned
// image frame passed through from a batch, or a stamped bot message.
type Output struct {
	Frame   *video.OwnedImageFrame
	Message *Message
}

// NewFrameOutput wraps a passthrough frame.
func NewFrameOutput(f video.OwnedImageFrame) Output { return Output{Frame: &f} }

// NewMessageOutput wraps a stamped message.
func NewMessageOutput(m Message) Output { return Output{Message: &m} }

// IsFrame reports whether this output carries a frame.
func (o Output) IsFrame() bool { return o.Frame != nil }

// IsMessage reports whether this output carries a message.
func (o Output) IsMessage() bool { return o.Message != nil }

// Input is the sum type run_bot() consumes: either a batch of owned
// encoded packets already decoded into frames, or a control message
// (an object or an array of objects, per the inbound control wire
// format).
type Input struct {
	control bool
	Batch   []video.OwnedImageFrame
	Control any
}

// NewBatchInput wraps a batch of decoded frames.
func NewBatchInput(frames []video.OwnedImageFrame) Input {
	return Input{Batch: frames}
}

// NewControlInput wraps a decoded control payload (object or array).
func NewControlInput(payload any) Input {
	return Input{control: true, Control: payload}
}

// IsControl reports whether this input is a control message rather than
// a frame batch.
func (in Input) IsControl() bool { return in.control }

// ImageCallback is invoked once per batch with the frames that arrived
// contiguously. It may call Instance.QueueMessage any number of times;
// a non-nil return is treated as a callback failure and surfaced as a
// DEBUG message rather than aborting the pipeline.
type ImageCallback func(inst *Instance, frames []video.OwnedImageFrame) error

// ControlCallback is invoked for every routed control message,
// including the synthesized startup "configure" and shutdown messages.
// A non-nil map result is queued as a response message; a non-nil error
// is surfaced as a DEBUG message.
type ControlCallback func(inst *Instance, msg map[string]any) (map[string]any, error)

// Descriptor bundles everything needed to construct an Instance as a
// struct of callbacks. PixelFormat is a hint to the decode stage the bot
// runs behind, not consumed by Instance itself.
type Descriptor struct {
	BotID           string
	Config          map[string]any
	PixelFormat     video.PixelFormat
	ImageCallback   ImageCallback
	ControlCallback ControlCallback
}
