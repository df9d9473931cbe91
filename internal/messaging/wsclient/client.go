// Package wsclient is a concrete messaging.Client: one gorilla/websocket
// connection multiplexed with xtaci/smux, one smux stream per channel
// subscription or publish stream, all carried inside a single HTTP
// upgrade connection.
package wsclient

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/xtaci/smux"
)

// Config configures a Client's connection to the bus. SendProxyHeader is
// only needed when the bus sits behind a PROXY-protocol-aware load
// balancer or test harness that requires it on every smux stream.
type Config struct {
	URL             string
	Header          http.Header
	SendProxyHeader bool
	ProxySource     *net.TCPAddr
	ProxyDest       *net.TCPAddr
}

// Client is a messaging.Client backed by one websocket connection
// multiplexed with smux. Construct fresh instances via a
// messaging.Factory so messaging.ResilientClient can rebuild one on
// reconnect.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	session   *smux.Session
	publishes map[string]*smux.Stream // channel -> cached publish stream
	subs      map[string]*smux.Stream // subscriptionID -> subscribe stream
}

// New returns a Client bound to cfg. Dialing happens in Start.
func New(cfg Config) *Client {
	return &Client{
		cfg:       cfg,
		publishes: make(map[string]*smux.Stream),
		subs:      make(map[string]*smux.Stream),
	}
}

// Factory returns a messaging.Factory that builds a fresh *Client for cfg
// on every call, for use with messaging.NewResilientClient.
func Factory(cfg Config) messaging.Factory {
	return func() (messaging.Client, error) {
		return New(cfg), nil
	}
}

func (c *Client) Start() error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.Dial(c.cfg.URL, c.cfg.Header)
	if err != nil {
		return errors.Wrap(err, "dialing bus websocket")
	}
	session, err := smux.Client(newStreamConn(conn), nil)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "establishing smux session")
	}
	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.publishes {
		s.Close()
	}
	for _, s := range c.subs {
		s.Close()
	}
	c.publishes = make(map[string]*smux.Stream)
	c.subs = make(map[string]*smux.Stream)
	if c.session != nil {
		c.session.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) Publish(channel string, data []byte, cb messaging.PublishCallbacks) {
	stream, err := c.publishStream(channel)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if err := writeFrame(stream, data); err != nil {
		if cb.OnError != nil {
			cb.OnError(errors.Wrap(err, "publishing message"))
		}
		return
	}
	if cb.OnOK != nil {
		cb.OnOK()
	}
}

func (c *Client) publishStream(channel string) (*smux.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.publishes[channel]; ok {
		return s, nil
	}
	if c.session == nil {
		return nil, errors.New("bus client not started")
	}
	stream, err := c.session.OpenStream()
	if err != nil {
		return nil, errors.Wrap(err, "opening publish stream")
	}
	if c.cfg.SendProxyHeader {
		if err := writeProxyHeader(stream, c.cfg.ProxySource, c.cfg.ProxyDest); err != nil {
			stream.Close()
			return nil, errors.Wrap(err, "writing proxy header")
		}
	}
	hs, err := json.Marshal(handshake{Channel: channel, Role: rolePublish})
	if err != nil {
		stream.Close()
		return nil, err
	}
	if err := writeFrame(stream, hs); err != nil {
		stream.Close()
		return nil, errors.Wrap(err, "sending publish handshake")
	}
	c.publishes[channel] = stream
	return stream, nil
}

func (c *Client) Subscribe(channel, subscriptionID string, data messaging.DataCallbacks, req messaging.RequestCallbacks, opts messaging.SubscribeOptions) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		if req.OnError != nil {
			req.OnError(errors.New("bus client not started"))
		}
		return
	}

	stream, err := session.OpenStream()
	if err != nil {
		if req.OnError != nil {
			req.OnError(errors.Wrap(err, "opening subscribe stream"))
		}
		return
	}

	if c.cfg.SendProxyHeader {
		if err := writeProxyHeader(stream, c.cfg.ProxySource, c.cfg.ProxyDest); err != nil {
			stream.Close()
			if req.OnError != nil {
				req.OnError(errors.Wrap(err, "writing proxy header"))
			}
			return
		}
	}

	hs, err := json.Marshal(handshake{Channel: channel, Role: roleSubscribe, SubscriptionID: subscriptionID})
	if err != nil {
		stream.Close()
		if req.OnError != nil {
			req.OnError(err)
		}
		return
	}
	if err := writeFrame(stream, hs); err != nil {
		stream.Close()
		if req.OnError != nil {
			req.OnError(errors.Wrap(err, "sending subscribe handshake"))
		}
		return
	}

	ackPayload, err := readFrame(stream)
	if err != nil {
		stream.Close()
		if req.OnError != nil {
			req.OnError(errors.Wrap(err, "reading subscribe ack"))
		}
		return
	}
	var a ack
	if err := json.Unmarshal(ackPayload, &a); err != nil {
		stream.Close()
		if req.OnError != nil {
			req.OnError(errors.Wrap(err, "decoding subscribe ack"))
		}
		return
	}
	if !a.OK {
		stream.Close()
		if req.OnError != nil {
			req.OnError(errors.Errorf("subscribe rejected: %s", a.Error))
		}
		return
	}

	c.mu.Lock()
	c.subs[subscriptionID] = stream
	c.mu.Unlock()

	if req.OnOK != nil {
		req.OnOK(subscriptionID)
	}

	go c.pump(channel, subscriptionID, stream, data, req)
}

func (c *Client) pump(channel, subscriptionID string, stream *smux.Stream, data messaging.DataCallbacks, req messaging.RequestCallbacks) {
	for {
		payload, err := readFrame(stream)
		if err != nil {
			c.mu.Lock()
			_, stillSubscribed := c.subs[subscriptionID]
			c.mu.Unlock()
			if stillSubscribed && req.OnError != nil {
				req.OnError(errors.Wrap(err, "subscription stream closed"))
			}
			return
		}
		if data.OnData != nil {
			data.OnData(messaging.Message{Channel: channel, Data: payload})
		}
	}
}

func (c *Client) Unsubscribe(subscriptionID string, cb messaging.PublishCallbacks) {
	c.mu.Lock()
	stream, ok := c.subs[subscriptionID]
	delete(c.subs, subscriptionID)
	c.mu.Unlock()

	if !ok {
		if cb.OnError != nil {
			cb.OnError(errors.Errorf("no such subscription %s", subscriptionID))
		}
		return
	}
	if err := stream.Close(); err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}
	if cb.OnOK != nil {
		cb.OnOK()
	}
}

var _ messaging.Client = (*Client)(nil)
