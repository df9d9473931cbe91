package bot

import (
	"testing"

	"github.com/rtmbot/videobot/internal/video"
	"github.com/stretchr/testify/require"
)

func TestQueueMessageSubstitutesCurrentFrameIDWhenUnassigned(t *testing.T) {
	inst := New("b1", nil, nil, nil, nil)
	inst.currentFrameID = video.FrameID{I1: 20, I2: 21}
	inst.QueueMessage(Analysis, map[string]any{"x": 3}, video.FrameID{})
	require.Len(t, inst.buffer, 1)
	require.Equal(t, video.FrameID{I1: 20, I2: 21}, inst.buffer[0].FrameID)
}

func TestQueueMessageKeepsExplicitIDVerbatim(t *testing.T) {
	inst := New("b1", nil, nil, nil, nil)
	inst.currentFrameID = video.FrameID{I1: 20, I2: 21}
	inst.QueueMessage(Debug, map[string]any{}, video.FrameID{I1: -1})
	require.Equal(t, video.FrameID{I1: -1}, inst.buffer[0].FrameID)
}

func TestDrainStampsFromAndOmitsIForSyntheticID(t *testing.T) {
	inst := New("b1", nil, nil, nil, nil)
	inst.QueueMessage(Debug, map[string]any{"msg": "hi"}, video.FrameID{I1: -1})
	outs, err := inst.drain()
	require.NoError(t, err)
	require.Len(t, outs, 1)
	data := outs[0].Message.Data
	require.Equal(t, "b1", data["from"])
	_, hasI := data["i"]
	require.False(t, hasI, "synthetic frame id must not stamp an \"i\" field")
}

func TestDrainRejectsNilMessageData(t *testing.T) {
	inst := New("b1", nil, nil, nil, nil)
	inst.buffer = append(inst.buffer, Message{Kind: Debug, Data: nil})
	_, err := inst.drain()
	require.ErrorIs(t, err, video.ErrContractViolation)
}

func TestConfigureAbortsWithoutControlCallbackWhenConfigNonNil(t *testing.T) {
	inst := New("b1", map[string]any{"k": 1}, nil, nil, nil)
	_, err := inst.Configure()
	require.ErrorIs(t, err, video.ErrContractViolation)
}

func TestConfigureNoOpWithoutCallbackOrConfig(t *testing.T) {
	inst := New("b1", nil, nil, nil, nil)
	outs, err := inst.Configure()
	require.NoError(t, err)
	require.Empty(t, outs)
}
