package bot

import (
	"encoding/json"
	"testing"

	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/stretchr/testify/require"
)

type fakeControlClient struct {
	sub messaging.DataCallbacks
}

func (f *fakeControlClient) Start() error { return nil }
func (f *fakeControlClient) Stop() error  { return nil }
func (f *fakeControlClient) Publish(channel string, data []byte, cb messaging.PublishCallbacks) {}
func (f *fakeControlClient) Subscribe(channel, subscriptionID string, data messaging.DataCallbacks, req messaging.RequestCallbacks, opts messaging.SubscribeOptions) {
	f.sub = data
}
func (f *fakeControlClient) Unsubscribe(subscriptionID string, cb messaging.PublishCallbacks) {}

func (f *fakeControlClient) sendControl(v any) {
	data, _ := json.Marshal(v)
	f.sub.OnData(messaging.Message{Channel: "control", Data: data})
}

type inputRecorder struct {
	sub       streams.Subscription
	inputs    []Input
	completed bool
	err       error
}

func (r *inputRecorder) OnSubscribe(sub streams.Subscription) { r.sub = sub; sub.Request(10) }
func (r *inputRecorder) OnNext(in Input)                       { r.inputs = append(r.inputs, in) }
func (r *inputRecorder) OnComplete()                           { r.completed = true }
func (r *inputRecorder) OnError(err error)                     { r.err = err }

// manualFrames is a Publisher[Input] that never completes on its own and
// ignores demand, letting the test push elements at will to exercise
// interleaving with the control-channel side of MergeControl.
type manualFrames struct {
	sub streams.Subscriber[Input]
}

type noopSub struct{}

func (noopSub) Request(int64) {}
func (noopSub) Cancel()       {}

func (m *manualFrames) Subscribe(sub streams.Subscriber[Input]) {
	m.sub = sub
	sub.OnSubscribe(noopSub{})
}

func (m *manualFrames) push(in Input) { m.sub.OnNext(in) }

func TestMergeControlDeliversBothOrigins(t *testing.T) {
	frames := &manualFrames{}
	client := &fakeControlClient{}
	merged := MergeControl(frames, client, "control")

	rec := &inputRecorder{}
	merged.Subscribe(rec)

	frames.push(NewBatchInput([]video.OwnedImageFrame{{FrameID: video.FrameID{I1: 1, I2: 2}}}))
	client.sendControl(map[string]any{"to": "b1", "action": "ping"})

	require.Len(t, rec.inputs, 2)
	require.False(t, rec.inputs[0].IsControl())
	require.True(t, rec.inputs[1].IsControl())
	require.False(t, rec.completed)
}
