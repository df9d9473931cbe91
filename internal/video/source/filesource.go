package source

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/video"
)

// logRecord is the on-disk shape of one video.EncodedPacket entry in a
// packet log: exactly one of Params/Frame is set, mirroring
// video.EncodedPacket's own discriminated-union shape.
type logRecord struct {
	Params *video.CodecParameters `json:"params,omitempty"`
	Frame  *video.EncodedFrame    `json:"frame,omitempty"`
}

// WritePacketLog serializes packets to w as a sequence of 4-byte
// big-endian length prefixes followed by a JSON-encoded logRecord, for
// later replay through FileSource.
func WritePacketLog(w io.Writer, packets []video.EncodedPacket) error {
	for _, pkt := range packets {
		rec := logRecord{}
		if pkt.IsParams() {
			rec.Params = pkt.Params
		} else {
			rec.Frame = pkt.Frame
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encoding packet log record")
		}
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// FileSource returns a Publisher that replays a packet log previously
// written by WritePacketLog. It reads the whole log into memory when
// subscribed, then emits one packet per unit of demand like
// streams.FromSlice.
func FileSource(r io.Reader) streams.Publisher[video.EncodedPacket] {
	return streams.PublisherFunc[video.EncodedPacket](func(sub streams.Subscriber[video.EncodedPacket]) {
		packets, err := readPacketLog(r)
		if err != nil {
			sub.OnSubscribe(noopSubscription{})
			sub.OnError(errors.Wrap(err, "reading packet log"))
			return
		}
		streams.FromSlice(packets).Subscribe(sub)
	})
}

func readPacketLog(r io.Reader) ([]video.EncodedPacket, error) {
	var packets []video.EncodedPacket
	for {
		var header [4]byte
		_, err := io.ReadFull(r, header[:])
		if err == io.EOF {
			return packets, nil
		}
		if err != nil {
			return nil, err
		}
		payload := make([]byte, binary.BigEndian.Uint32(header[:]))
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		var rec logRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		switch {
		case rec.Params != nil:
			packets = append(packets, video.NewParamsPacket(*rec.Params))
		case rec.Frame != nil:
			packets = append(packets, video.NewFramePacket(*rec.Frame))
		default:
			return nil, errors.New("packet log record has neither params nor frame")
		}
	}
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}
