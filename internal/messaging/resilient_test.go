package messaging

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory Client double. An instance with failNextSub
// set fails its next Subscribe call; tests build later instances without
// it, so they can assert restart-and-replay behavior.
type fakeClient struct {
	mu          sync.Mutex
	started     bool
	stopped     bool
	subscribed  []string
	failNextSub bool
}

func (f *fakeClient) Start() error { f.started = true; return nil }
func (f *fakeClient) Stop() error  { f.stopped = true; return nil }
func (f *fakeClient) Publish(channel string, data []byte, cb PublishCallbacks) {
	if cb.OnOK != nil {
		cb.OnOK()
	}
}
func (f *fakeClient) Subscribe(channel, subscriptionID string, data DataCallbacks, req RequestCallbacks, opts SubscribeOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextSub {
		f.failNextSub = false
		if req.OnError != nil {
			req.OnError(errFakeSubscribeFailure)
		}
		return
	}
	f.subscribed = append(f.subscribed, subscriptionID)
	if req.OnOK != nil {
		req.OnOK(subscriptionID)
	}
}
func (f *fakeClient) Unsubscribe(subscriptionID string, cb PublishCallbacks) {
	if cb.OnOK != nil {
		cb.OnOK()
	}
}

var errFakeSubscribeFailure = &fakeErr{"subscribe failed"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func TestResilientClientReplaysSubscriptionsInOrderAfterRestart(t *testing.T) {
	var built []*fakeClient
	var buildMu sync.Mutex
	factory := func() (Client, error) {
		buildMu.Lock()
		defer buildMu.Unlock()
		c := &fakeClient{}
		if len(built) == 0 {
			c.failNextSub = true
		}
		built = append(built, c)
		return c, nil
	}

	rc := NewResilientClient(factory, func(err error) { t.Fatalf("unexpected fatal: %v", err) })
	require.NoError(t, rc.Start())
	defer rc.Stop()

	rc.Subscribe("channel-a", "sub-1", DataCallbacks{}, RequestCallbacks{}, SubscribeOptions{})
	rc.Subscribe("channel-b", "sub-2", DataCallbacks{}, RequestCallbacks{}, SubscribeOptions{})

	require.Eventually(t, func() bool {
		buildMu.Lock()
		defer buildMu.Unlock()
		return len(built) == 2
	}, time.Second, time.Millisecond)

	buildMu.Lock()
	second := built[1]
	buildMu.Unlock()

	second.mu.Lock()
	defer second.mu.Unlock()
	require.Equal(t, []string{"sub-1", "sub-2"}, second.subscribed)
}

func TestResilientClientStartsAndStopsDelegate(t *testing.T) {
	var delegate *fakeClient
	factory := func() (Client, error) {
		delegate = &fakeClient{}
		return delegate, nil
	}
	rc := NewResilientClient(factory, nil)
	require.NoError(t, rc.Start())
	require.True(t, delegate.started)

	require.NoError(t, rc.Stop())
	require.True(t, delegate.stopped)
}
