package wsclient

import (
	"io"
	"net"

	"github.com/pires/go-proxyproto"
)

// writeProxyHeader emits a PROXY protocol v1 preamble before the stream's
// handshake frame, for deployments where the bus sits behind a
// PROXY-protocol-aware load balancer. Only wsclienttest's harness
// requires this in this repository; real deployments opt in via
// Config.SendProxyHeader.
func writeProxyHeader(w io.Writer, src, dst *net.TCPAddr) error {
	hdr := &proxyproto.Header{
		Version:           1,
		Command:           proxyproto.PROXY,
		TransportProtocol: proxyproto.TCPv4,
		SourceAddr:        src,
		DestinationAddr:   dst,
	}
	_, err := hdr.WriteTo(w)
	return err
}
