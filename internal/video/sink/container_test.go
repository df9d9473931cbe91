package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/stretchr/testify/require"
)

func TestContainerSinkWritesIndexPerFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.webm")

	s, err := NewContainerSink(path)
	require.NoError(t, err)
	s.SetDimensions(64, 48)

	packets := []video.EncodedPacket{
		video.NewParamsPacket(video.CodecParameters{Name: "vp9"}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte{1, 2, 3}, KeyFrame: true, ArrivalTime: 1000}),
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 2, I2: 3}, Data: []byte{4, 5}, ArrivalTime: 2000}),
	}

	require.NoError(t, s.Run(streams.FromSlice(packets)))

	_, err = os.Stat(path)
	require.NoError(t, err)

	idxF, err := os.Open(path + ".idx.jsonl")
	require.NoError(t, err)
	defer idxF.Close()

	var records []indexRecord
	scanner := bufio.NewScanner(idxF)
	for scanner.Scan() {
		var rec indexRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	require.Equal(t, int64(1), records[0].I1)
	require.True(t, records[0].KeyFrame)
	require.Equal(t, 3, records[0].Size)
	require.Equal(t, int64(2), records[1].I1)
	require.False(t, records[1].KeyFrame)
}

func TestContainerSinkDropsFramesBeforeParams(t *testing.T) {
	dir := t.TempDir()
	s, err := NewContainerSink(filepath.Join(dir, "out.webm"))
	require.NoError(t, err)

	packets := []video.EncodedPacket{
		video.NewFramePacket(video.EncodedFrame{FrameID: video.FrameID{I1: 1, I2: 2}, Data: []byte{1}}),
	}
	require.NoError(t, s.Run(streams.FromSlice(packets)))

	idxF, err := os.Open(filepath.Join(dir, "out.webm.idx.jsonl"))
	require.NoError(t, err)
	defer idxF.Close()
	scanner := bufio.NewScanner(idxF)
	require.False(t, scanner.Scan())
}

func TestCodecIDForKnownNames(t *testing.T) {
	require.Equal(t, "V_VP9", codecIDFor("vp9"))
	require.Equal(t, "V_MPEG4/ISO/AVC", codecIDFor("h264"))
	require.Equal(t, "V_MPEG4/ISO/AVC", codecIDFor("unknown-codec"))
}
