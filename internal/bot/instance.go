package bot

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/metrics"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
)

// Instance is the per-bot state machine described by run_bot(): it owns
// the current geometry latch, the pending outbound message buffer, and
// the frame id in scope while the image callback is running. It is not
// shared — the pipeline stage that constructs one owns it exclusively.
type Instance struct {
	BotID           string
	Config          map[string]any
	ImageCallback   ImageCallback
	ControlCallback ControlCallback

	metrics *metrics.Registry
	log     *slog.Logger

	metadata       video.ImageMetadata
	buffer         []Message
	currentFrameID video.FrameID
	configured     bool
}

// New constructs an Instance. metricsReg may be nil, in which case
// counters are simply not recorded.
func New(botID string, config map[string]any, imageCB ImageCallback, controlCB ControlCallback, metricsReg *metrics.Registry) *Instance {
	return &Instance{
		BotID:           botID,
		Config:          config,
		ImageCallback:   imageCB,
		ControlCallback: controlCB,
		metrics:         metricsReg,
		log:             util.GetLogger(),
	}
}

// NewFromDescriptor is New with the callbacks and configuration taken from
// a Descriptor, the struct-of-callbacks shape cmd's bot registration uses.
func NewFromDescriptor(d Descriptor, metricsReg *metrics.Registry) *Instance {
	return New(d.BotID, d.Config, d.ImageCallback, d.ControlCallback, metricsReg)
}

// QueueMessage appends a message to the pending buffer. If id is the
// zero frame id and the instance is currently inside a batch dispatch
// (current_frame_id non-zero), the current frame id is substituted;
// otherwise id is used verbatim, including a synthetic (i1 < 0) id.
func (inst *Instance) QueueMessage(kind Kind, data map[string]any, id video.FrameID) {
	if id.Unassigned() && !inst.currentFrameID.Unassigned() {
		id = inst.currentFrameID
	}
	inst.buffer = append(inst.buffer, Message{Kind: kind, Data: data, FrameID: id})
}

// QueueDebug is sugar for QueueMessage(Debug, data, unassigned id).
func (inst *Instance) QueueDebug(data map[string]any) {
	inst.QueueMessage(Debug, data, video.FrameID{})
}

// Configure runs the startup control handshake: if a control callback
// is registered, synthesizes {action: "configure", body: Config} and
// dispatches it synchronously, queuing any non-nil response as DEBUG.
// If no callback is registered but Config is non-nil, configuring is a
// contract violation — a bot cannot be configured without anywhere to
// send the configuration.
func (inst *Instance) Configure() ([]Output, error) {
	if inst.ControlCallback == nil {
		if inst.Config != nil {
			return nil, errors.Wrapf(video.ErrContractViolation,
				"configuration provided but no control callback registered")
		}
		inst.configured = true
		return nil, nil
	}

	body := inst.Config
	if body == nil {
		body = map[string]any{}
	}
	resp, err := inst.ControlCallback(inst, map[string]any{"action": "configure", "body": body})
	if err != nil {
		inst.QueueDebug(map[string]any{"error": err.Error()})
	}
	if resp != nil {
		inst.QueueDebug(resp)
	}
	inst.configured = true
	return inst.drain()
}

// Shutdown runs the shutdown control handshake: dispatches {action:
// "shutdown"} and queues any non-nil response as DEBUG, returning
// whatever the buffer then drains to. Safe to call with a nil
// ControlCallback (no-op shutdown message, buffer still drained).
func (inst *Instance) Shutdown() ([]Output, error) {
	if inst.ControlCallback != nil {
		resp, err := inst.ControlCallback(inst, map[string]any{"action": "shutdown"})
		if err != nil {
			inst.QueueDebug(map[string]any{"error": err.Error()})
		}
		if resp != nil {
			inst.QueueDebug(resp)
		}
	}
	return inst.drain()
}

// Process dispatches a single Input to the appropriate handler and
// returns the flat list of outputs it produces.
func (inst *Instance) Process(in Input) ([]Output, error) {
	if in.IsControl() {
		return inst.processControl(in.Control)
	}
	return inst.processBatch(in.Batch)
}

func (inst *Instance) processBatch(frames []video.OwnedImageFrame) ([]Output, error) {
	for _, f := range frames {
		candidate := video.ImageMetadata{
			Width:        f.Width,
			Height:       f.Height,
			PlaneStrides: f.PlaneStrides,
		}
		if err := inst.metadata.Latch(candidate); err != nil {
			return nil, err
		}
	}

	if len(frames) > 0 {
		inst.currentFrameID = frames[len(frames)-1].FrameID
	}
	if inst.metrics != nil {
		inst.metrics.FrameBatchSize.Observe(float64(len(frames)))
		inst.metrics.FramesProcessed.WithLabelValues(inst.BotID).Add(float64(len(frames)))
	}

	if inst.ImageCallback != nil {
		if err := inst.ImageCallback(inst, frames); err != nil {
			inst.QueueDebug(map[string]any{"error": err.Error()})
		}
	}

	outs := make([]Output, 0, len(frames))
	for _, f := range frames {
		outs = append(outs, NewFrameOutput(f))
	}
	drained, err := inst.drain()
	if err != nil {
		return nil, err
	}
	return append(outs, drained...), nil
}

func (inst *Instance) processControl(raw any) ([]Output, error) {
	switch v := raw.(type) {
	case []any:
		var outs []Output
		for _, elem := range v {
			sub, err := inst.processControl(elem)
			if err != nil {
				return nil, err
			}
			outs = append(outs, sub...)
		}
		return outs, nil
	case map[string]any:
		to, ok := v["to"].(string)
		if !ok {
			inst.log.Warn("dropping control message without a \"to\" field")
			return nil, nil
		}
		if inst.BotID != "" && to != inst.BotID {
			return nil, nil
		}
		if inst.ControlCallback == nil {
			inst.log.Warn("dropping control message: no control callback registered")
			return nil, nil
		}
		resp, err := inst.ControlCallback(inst, v)
		if err != nil {
			inst.QueueDebug(map[string]any{"error": err.Error()})
		}
		if resp != nil {
			if reqID, ok := v["request_id"]; ok {
				resp["request_id"] = reqID
			}
			inst.QueueMessage(Control, resp, video.FrameID{I1: -1, I2: -1})
		}
		return inst.drain()
	default:
		inst.log.Warn("dropping control message: not an object or array")
		return nil, nil
	}
}

// drain stamps and emits every buffered message, clearing the buffer.
func (inst *Instance) drain() ([]Output, error) {
	if len(inst.buffer) == 0 {
		return nil, nil
	}
	outs := make([]Output, 0, len(inst.buffer))
	for _, m := range inst.buffer {
		if inst.metrics != nil {
			inst.metrics.MessagesSent.WithLabelValues(inst.BotID, m.Kind.String()).Inc()
		}
		if m.Data == nil {
			return nil, errors.Wrapf(video.ErrContractViolation,
				"queued %s message data is not an object", m.Kind)
		}
		stamped := make(map[string]any, len(m.Data)+2)
		for k, v := range m.Data {
			stamped[k] = v
		}
		if m.FrameID.I1 >= 0 {
			stamped["i"] = [2]int64{m.FrameID.I1, m.FrameID.I2}
		}
		if inst.BotID != "" {
			stamped["from"] = inst.BotID
		}
		outs = append(outs, NewMessageOutput(Message{Kind: m.Kind, Data: stamped, FrameID: m.FrameID}))
	}
	inst.buffer = inst.buffer[:0]
	return outs, nil
}
