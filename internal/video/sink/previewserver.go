package sink

import (
	"encoding/json"
	"net/http"

	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/util"
)

// PreviewServer exposes a single-viewer WebRTC signaling endpoint for an
// optional live-preview track: a browser POSTs an SDP offer to Handler
// and gets back an SDP answer, the minimal half of an offer/answer
// exchange needed when the server holds the only track and never
// originates its own offer.
type PreviewServer struct {
	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticSample
	log   *util.Logger
}

// NewPreviewServer creates a peer connection carrying a single VP9 video
// track and returns both the server and the track callers write samples
// to.
func NewPreviewServer() (*PreviewServer, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating preview peer connection")
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9},
		"video",
		"videobot-preview",
	)
	if err != nil {
		pc.Close()
		return nil, nil, errors.Wrap(err, "creating preview track")
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, nil, errors.Wrap(err, "adding preview track")
	}
	return &PreviewServer{pc: pc, track: track, log: util.GetCompatLogger()}, track, nil
}

// Handler answers an SDP offer posted as JSON with the resulting SDP
// answer, also encoded as JSON, once ICE gathering completes.
func (s *PreviewServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var offer webrtc.SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			http.Error(w, "invalid offer", http.StatusBadRequest)
			return
		}
		if err := s.pc.SetRemoteDescription(offer); err != nil {
			s.log.Warnf("preview: setting remote description failed: %v", err)
			http.Error(w, "invalid offer", http.StatusBadRequest)
			return
		}
		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			s.log.Warnf("preview: creating answer failed: %v", err)
			http.Error(w, "failed to create answer", http.StatusInternalServerError)
			return
		}
		gatherComplete := webrtc.GatheringCompletePromise(s.pc)
		if err := s.pc.SetLocalDescription(answer); err != nil {
			s.log.Warnf("preview: setting local description failed: %v", err)
			http.Error(w, "failed to set local description", http.StatusInternalServerError)
			return
		}
		<-gatherComplete

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.pc.LocalDescription())
	}
}

// Close tears down the underlying peer connection.
func (s *PreviewServer) Close() error {
	return s.pc.Close()
}
