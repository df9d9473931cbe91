// Package paramparse recovers width/height from an H.264 codec-parameters
// packet's extra_data (SPS/PPS) when the metadata channel didn't carry
// explicit dimensions. It is a narrow use of mediacommon's SPS parser, not
// a full bitstream decode — actual pixel decode stays behind codec.Decoder.
package paramparse

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/pkg/errors"
)

// Dimensions is the result of recovering geometry from an SPS.
type Dimensions struct {
	Width  int
	Height int
}

// H264Dimensions scans extraData (expected to contain, or be, an Annex-B
// SPS NAL unit) and returns the width/height it encodes. extraData may be
// either a bare SPS or an Annex-B byte stream containing one; both forms
// appear in the wild depending on how the bus source packaged extra_data.
func H264Dimensions(extraData []byte) (Dimensions, error) {
	sps, err := findSPS(extraData)
	if err != nil {
		return Dimensions{}, err
	}

	var parsed h264.SPS
	if err := parsed.Unmarshal(sps); err != nil {
		return Dimensions{}, errors.Wrap(err, "parsing H.264 SPS")
	}

	return Dimensions{Width: parsed.Width(), Height: parsed.Height()}, nil
}

const nalTypeSPS = 7

// findSPS extracts the first SPS NAL unit from extraData. If extraData has
// no Annex-B start codes it is assumed to already be a bare SPS.
func findSPS(extraData []byte) ([]byte, error) {
	if len(extraData) == 0 {
		return nil, errors.New("empty extra_data")
	}

	nals := splitAnnexB(extraData)
	if len(nals) == 0 {
		return extraData, nil
	}
	for _, nal := range nals {
		if len(nal) > 0 && nal[0]&0x1f == nalTypeSPS {
			return nal, nil
		}
	}
	return nil, errors.New("no SPS NAL unit found in extra_data")
}

// splitAnnexB splits a byte stream on 3- or 4-byte Annex-B start codes.
// Returns nil if no start code is present.
func splitAnnexB(data []byte) [][]byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		}
	}
	if len(starts) == 0 {
		return nil
	}
	nals := make([][]byte, 0, len(starts))
	for i, start := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1] - 3
			for end > start && data[end-1] == 0 {
				end--
			}
		}
		nals = append(nals, data[start:end])
	}
	return nals
}
