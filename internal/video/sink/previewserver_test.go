package sink

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestNewPreviewServerAddsVP9Track(t *testing.T) {
	srv, track, err := NewPreviewServer()
	require.NoError(t, err)
	defer srv.Close()

	require.Equal(t, webrtc.MimeTypeVP9, track.Codec().MimeType)
	require.NotNil(t, srv.Handler())
}
