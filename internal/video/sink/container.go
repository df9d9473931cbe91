package sink

import (
	"encoding/json"
	"math"
	"os"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/rtmbot/videobot/internal/video"
	"github.com/rtmbot/videobot/internal/video/codec/paramparse"
)

// ContainerSink writes a single-track WebM file from a stream of
// video.EncodedPacket. The track's CodecID is derived from the first
// codec-parameters packet, so it follows whatever codec the upstream
// pipeline actually produced.
//
// WebM's SimpleBlock model has no first-class frame-id field, so frame
// id, key-frame flag and arrival time are additionally persisted to a
// companion JSON-lines index alongside the container, one record per
// frame, so a reader can recover frame identity without parsing the
// container itself.
type ContainerSink struct {
	path    string
	file    *os.File
	idxFile *os.File
	idxEnc  *json.Encoder
	log     *util.Logger

	writer      webm.BlockWriteCloser
	initialized bool
	firstArr    int64
	width       int
	height      int

	upstream  streams.Subscription
	cancelled bool
	done      chan error
}

// indexRecord is one line of the companion <file>.idx.jsonl index.
type indexRecord struct {
	I1          int64 `json:"i1"`
	I2          int64 `json:"i2"`
	KeyFrame    bool  `json:"key_frame"`
	ArrivalTime int64 `json:"arrival_time"`
	Size        int   `json:"size"`
}

// NewContainerSink opens path (and path+".idx.jsonl") for writing. The
// WebM header itself is not written until the first codec-parameters
// packet arrives, since only then is the codec known.
func NewContainerSink(path string) (*ContainerSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating container file %q", path)
	}
	idx, err := os.Create(path + ".idx.jsonl")
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "creating container index %q", path+".idx.jsonl")
	}
	return &ContainerSink{
		path:    path,
		file:    f,
		idxFile: idx,
		idxEnc:  json.NewEncoder(idx),
		log:     util.GetCompatLogger(),
		done:    make(chan error, 1),
	}, nil
}

// Run subscribes to pub, requests unbounded demand, and blocks until
// upstream completes or errors. The file and index are always closed
// before Run returns, regardless of outcome.
func (s *ContainerSink) Run(pub streams.Publisher[video.EncodedPacket]) error {
	pub.Subscribe(s)
	err := <-s.done
	closeErr := s.close()
	if err != nil {
		return err
	}
	return closeErr
}

func (s *ContainerSink) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	sub.Request(math.MaxInt64)
}

func (s *ContainerSink) OnNext(pkt video.EncodedPacket) {
	if s.cancelled {
		return
	}
	if pkt.IsParams() {
		s.onParams(*pkt.Params)
		return
	}
	s.onFrame(*pkt.Frame)
}

func (s *ContainerSink) onParams(p video.CodecParameters) {
	if s.initialized {
		// Codec-parameters change mid-stream: close the current track
		// and open a new one so the file stays demuxable, mirroring
		// the webm library's own on-fatal reset pattern.
		if s.writer != nil {
			_ = s.writer.Close()
			s.writer = nil
		}
		s.initialized = false
	}

	if s.width == 0 && s.height == 0 && isH264(p.Name) {
		if dims, err := paramparse.H264Dimensions(p.ExtraData); err == nil {
			s.width, s.height = dims.Width, dims.Height
		} else {
			s.log.Debugf("could not recover geometry from SPS, writing 0x0: %v", err)
		}
	}

	codecID := codecIDFor(p.Name)
	writers, err := webm.NewSimpleBlockWriter(s.file, []webm.TrackEntry{
		{
			Name:            "Video",
			TrackNumber:     1,
			TrackUID:        1,
			CodecID:         codecID,
			TrackType:       1,
			DefaultDuration: 33333333,
			CodecPrivate:    p.ExtraData,
			Video: &webm.Video{
				PixelWidth:  uint64(s.width),
				PixelHeight: uint64(s.height),
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		s.log.Errorf("webm muxer fatal error: %v", err)
	}))
	if err != nil {
		s.fail(errors.Wrap(err, "initializing webm container"))
		return
	}
	s.writer = writers[0]
	s.initialized = true
}

func isH264(name string) bool {
	switch name {
	case "h264", "H264", "avc", "AVC":
		return true
	default:
		return false
	}
}

// SetDimensions overrides the geometry written into the WebM video track,
// for sources that know it upfront (e.g. a camera source reporting its
// capture resolution) rather than relying on SPS recovery.
func (s *ContainerSink) SetDimensions(width, height int) {
	s.width, s.height = width, height
}

func codecIDFor(name string) string {
	switch name {
	case "vp9", "VP9":
		return "V_VP9"
	case "vp8", "VP8":
		return "V_VP8"
	case "h264", "H264", "avc", "AVC":
		return "V_MPEG4/ISO/AVC"
	default:
		return "V_MPEG4/ISO/AVC"
	}
}

func (s *ContainerSink) onFrame(f video.EncodedFrame) {
	if !s.initialized {
		s.log.Warnf("dropping encoded frame %d..%d before codec parameters observed", f.FrameID.I1, f.FrameID.I2)
		return
	}
	if s.firstArr == 0 {
		s.firstArr = f.ArrivalTime
	}
	ts := f.ArrivalTime - s.firstArr
	if _, err := s.writer.Write(f.KeyFrame, ts, f.Data); err != nil {
		s.fail(errors.Wrap(err, "writing encoded frame to container"))
		return
	}
	_ = s.idxEnc.Encode(indexRecord{
		I1:          f.FrameID.I1,
		I2:          f.FrameID.I2,
		KeyFrame:    f.KeyFrame,
		ArrivalTime: f.ArrivalTime,
		Size:        len(f.Data),
	})
}

func (s *ContainerSink) OnComplete() {
	select {
	case s.done <- nil:
	default:
	}
}

func (s *ContainerSink) OnError(err error) {
	select {
	case s.done <- errors.Wrap(err, "container sink upstream"):
	default:
	}
}

func (s *ContainerSink) fail(err error) {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
	select {
	case s.done <- err:
	default:
	}
}

// Cancel stops the sink from consuming further elements. Idempotent.
func (s *ContainerSink) Cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}

func (s *ContainerSink) close() error {
	var firstErr error
	fileClosed := false
	if s.writer != nil {
		// Closing the block writer also closes s.file underneath it.
		if err := s.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.writer = nil
		fileClosed = true
	}
	if !fileClosed {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.idxFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
