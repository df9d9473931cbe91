package wsclient

import (
	"net"
	"testing"
	"time"

	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/messaging/wsclient/wsclienttest"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	c := New(Config{
		URL:             url,
		SendProxyHeader: true,
		ProxySource:     &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1},
		ProxyDest:       &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 2},
	})
	require.NoError(t, c.Start())
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestClientPublishSubscribeRoundTrip(t *testing.T) {
	harness := wsclienttest.New()
	defer harness.Close()

	subscriber := newTestClient(t, harness.URL)
	publisher := newTestClient(t, harness.URL)

	received := make(chan messaging.Message, 1)
	reqDone := make(chan error, 1)
	subscriber.Subscribe("frames", "sub-1", messaging.DataCallbacks{
		OnData: func(msg messaging.Message) { received <- msg },
	}, messaging.RequestCallbacks{
		OnOK:    func(string) { reqDone <- nil },
		OnError: func(err error) { reqDone <- err },
	}, messaging.SubscribeOptions{})

	require.NoError(t, <-reqDone)

	pubDone := make(chan error, 1)
	publisher.Publish("frames", []byte("hello"), messaging.PublishCallbacks{
		OnOK:    func() { pubDone <- nil },
		OnError: func(err error) { pubDone <- err },
	})
	require.NoError(t, <-pubDone)

	select {
	case msg := <-received:
		require.Equal(t, "frames", msg.Channel)
		require.Equal(t, []byte("hello"), msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestClientUnsubscribeStopsDelivery(t *testing.T) {
	harness := wsclienttest.New()
	defer harness.Close()

	subscriber := newTestClient(t, harness.URL)
	publisher := newTestClient(t, harness.URL)

	received := make(chan messaging.Message, 4)
	reqDone := make(chan error, 1)
	subscriber.Subscribe("frames", "sub-1", messaging.DataCallbacks{
		OnData: func(msg messaging.Message) { received <- msg },
	}, messaging.RequestCallbacks{
		OnOK: func(string) { reqDone <- nil },
	}, messaging.SubscribeOptions{})
	require.NoError(t, <-reqDone)

	unsubDone := make(chan error, 1)
	subscriber.Unsubscribe("sub-1", messaging.PublishCallbacks{
		OnOK:    func() { unsubDone <- nil },
		OnError: func(err error) { unsubDone <- err },
	})
	require.NoError(t, <-unsubDone)

	publisher.Publish("frames", []byte("after-unsubscribe"), messaging.PublishCallbacks{})

	select {
	case msg := <-received:
		t.Fatalf("unexpected message after unsubscribe: %+v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
