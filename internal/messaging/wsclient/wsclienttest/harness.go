// Package wsclienttest is an in-process bus simulator used to exercise
// wsclient.Client end-to-end: it speaks the same websocket+smux
// multiplexing and length-prefixed framing, requires a PROXY protocol v1
// preamble on every stream (as a load-balancer-fronted bus would), and
// fans published bytes out to every subscriber of the same channel.
//
// It intentionally reimplements the small wire-framing pieces rather
// than importing wsclient's unexported internals: a test double should
// speak the protocol, not share code with the thing it's testing.
package wsclienttest

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pires/go-proxyproto"
	"github.com/xtaci/smux"
)

type handshake struct {
	Channel        string `json:"channel"`
	Role           string `json:"role"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const (
	rolePublish   = "publish"
	roleSubscribe = "subscribe"
)

func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Harness is a minimal bus server: one websocket connection, one smux
// session, N streams each tagged publish or subscribe for a channel.
type Harness struct {
	Server *httptest.Server
	URL    string

	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string][]*smux.Stream // channel -> subscriber streams
}

// New starts the harness and returns it; call Close when done.
func New() *Harness {
	h := &Harness{
		subscribers: make(map[string][]*smux.Stream),
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.handleUpgrade))
	h.URL = "ws" + h.Server.URL[len("http"):]
	return h
}

// Close shuts down the underlying test server.
func (h *Harness) Close() {
	h.Server.Close()
}

func (h *Harness) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	session, err := smux.Server(newWSAdapter(conn), nil)
	if err != nil {
		conn.Close()
		return
	}
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			return
		}
		go h.handleStream(stream)
	}
}

func (h *Harness) handleStream(stream *smux.Stream) {
	proxied := proxyproto.NewConn(stream)
	// Force the PROXY header to be parsed before trusting the stream's
	// byte boundaries for the handshake frame that follows it.
	if _, err := proxied.ProxyHeader().TLVs(); err != nil {
		return
	}

	hsPayload, err := readFrame(proxied)
	if err != nil {
		return
	}
	var hs handshake
	if err := json.Unmarshal(hsPayload, &hs); err != nil {
		return
	}

	switch hs.Role {
	case roleSubscribe:
		h.mu.Lock()
		h.subscribers[hs.Channel] = append(h.subscribers[hs.Channel], stream)
		h.mu.Unlock()
		_ = writeFrame(proxied, mustJSON(ack{OK: true}))
		// Subscriber streams are read by the client; the harness only
		// ever writes to them from pumpPublisher, so this goroutine is
		// done once the ack is sent.
	case rolePublish:
		h.pumpPublisher(hs.Channel, proxied)
	}
}

func (h *Harness) pumpPublisher(channel string, stream *proxyproto.Conn) {
	for {
		payload, err := readFrame(stream)
		if err != nil {
			return
		}
		h.mu.Lock()
		subs := append([]*smux.Stream(nil), h.subscribers[channel]...)
		h.mu.Unlock()
		for _, sub := range subs {
			_ = writeFrame(sub, payload)
		}
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// wsAdapter turns a *websocket.Conn into the plain io.ReadWriteCloser
// byte stream smux.Server expects, buffering partial reads across calls.
type wsAdapter struct {
	conn    *websocket.Conn
	pending []byte
}

func newWSAdapter(conn *websocket.Conn) *wsAdapter {
	return &wsAdapter{conn: conn}
}

func (a *wsAdapter) Read(p []byte) (int, error) {
	for len(a.pending) == 0 {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		a.pending = data
	}
	n := copy(p, a.pending)
	a.pending = a.pending[n:]
	return n, nil
}

func (a *wsAdapter) Write(p []byte) (int, error) {
	if err := a.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *wsAdapter) Close() error {
	return a.conn.Close()
}
