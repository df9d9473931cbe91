package messaging

import (
	"sync"

	"github.com/dchest/uniuri"
	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/util"
	"github.com/vishalkuo/bimap"
	"k8s.io/utils/keymutex"
)

// Factory constructs a fresh delegate Client, used both for the initial
// connection and for every reconnect attempt.
type Factory func() (Client, error)

// subscriptionRecord is everything needed to replay a subscription
// against a freshly constructed delegate.
type subscriptionRecord struct {
	channel string
	data    DataCallbacks
	request RequestCallbacks
	opts    SubscribeOptions
}

// ResilientClient wraps a delegate Client built by factory with
// reconnect-and-replay semantics: on any delegate error it stops the
// delegate, builds a new one, starts it, and replays every live
// subscription in the order it was created. A bimap tracks live
// subscription identities, a per-key mutex serializes Subscribe calls per
// channel, and uniuri generates subscription ids the caller didn't supply one for.
type ResilientClient struct {
	factory Factory
	onFatal func(error)
	log     *util.Logger

	mu       sync.Mutex
	delegate Client
	started  bool

	subs     *bimap.BiMap[string, string] // subscriptionID <-> channel
	subOrder []string
	subInfo  map[string]subscriptionRecord
	subLock  keymutex.KeyMutex

	dispatch chan func()
	done     chan struct{}
}

// NewResilientClient builds a wrapper around delegates produced by
// factory. onFatal is invoked when a restart itself fails: restart
// failures surface as fatal rather than being retried indefinitely.
func NewResilientClient(factory Factory, onFatal func(error)) *ResilientClient {
	return &ResilientClient{
		factory:  factory,
		onFatal:  onFatal,
		log:      util.GetCompatLogger(),
		subs:     bimap.NewBiMap[string, string](),
		subInfo:  make(map[string]subscriptionRecord),
		subLock:  keymutex.NewHashed(256),
		dispatch: make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// Start constructs and starts the first delegate, then launches the
// single-goroutine dispatch loop every mutating call is re-posted onto.
func (rc *ResilientClient) Start() error {
	delegate, err := rc.factory()
	if err != nil {
		return errors.Wrap(err, "constructing bus client")
	}
	if err := delegate.Start(); err != nil {
		return errors.Wrap(err, "starting bus client")
	}
	rc.delegate = delegate
	rc.started = true
	go rc.run()
	return nil
}

// Stop ends the dispatch loop and stops the current delegate.
func (rc *ResilientClient) Stop() error {
	if !rc.started {
		return nil
	}
	err := rc.post(func() error {
		rc.started = false
		return rc.delegate.Stop()
	})
	close(rc.done)
	return err
}

func (rc *ResilientClient) run() {
	for {
		select {
		case <-rc.done:
			return
		case fn := <-rc.dispatch:
			fn()
		}
	}
}

// post re-posts fn onto the I/O thread and blocks until it runs,
// enforcing single-writer access to the bus client's public methods.
func (rc *ResilientClient) post(fn func() error) error {
	result := make(chan error, 1)
	select {
	case rc.dispatch <- func() { result <- fn() }:
	case <-rc.done:
		return errors.New("resilient client stopped")
	}
	return <-result
}

func (rc *ResilientClient) Publish(channel string, data []byte, cb PublishCallbacks) {
	_ = rc.post(func() error {
		rc.delegate.Publish(channel, data, rc.wrapPublish(cb))
		return nil
	})
}

func (rc *ResilientClient) Subscribe(channel, subscriptionID string, data DataCallbacks, req RequestCallbacks, opts SubscribeOptions) {
	if subscriptionID == "" {
		subscriptionID = uniuri.NewLen(32)
	}
	rc.subLock.LockKey(channel)
	defer rc.subLock.UnlockKey(channel)

	_ = rc.post(func() error {
		rc.mu.Lock()
		rc.subs.Insert(subscriptionID, channel)
		rc.subOrder = append(rc.subOrder, subscriptionID)
		rc.subInfo[subscriptionID] = subscriptionRecord{channel: channel, data: data, request: req, opts: opts}
		rc.mu.Unlock()

		rc.delegate.Subscribe(channel, subscriptionID, rc.wrapData(data), rc.wrapRequest(req), opts)
		return nil
	})
}

func (rc *ResilientClient) Unsubscribe(subscriptionID string, cb PublishCallbacks) {
	_ = rc.post(func() error {
		rc.mu.Lock()
		rc.forgetSubscription(subscriptionID)
		rc.mu.Unlock()

		rc.delegate.Unsubscribe(subscriptionID, cb)
		return nil
	})
}

func (rc *ResilientClient) forgetSubscription(subscriptionID string) {
	rc.subs.Delete(subscriptionID)
	delete(rc.subInfo, subscriptionID)
	for i, id := range rc.subOrder {
		if id == subscriptionID {
			rc.subOrder = append(rc.subOrder[:i], rc.subOrder[i+1:]...)
			break
		}
	}
}

// wrapPublish, wrapData, and wrapRequest pass every delegate signal
// through to the caller's own callbacks unchanged, but an OnError from
// any of them additionally triggers a restart — matching "bus-level
// errors are reported via on_error on the user's callbacks; the wrapper
// still initiates restart."

func (rc *ResilientClient) wrapPublish(cb PublishCallbacks) PublishCallbacks {
	return PublishCallbacks{
		OnOK: cb.OnOK,
		OnError: func(err error) {
			if cb.OnError != nil {
				cb.OnError(err)
			}
			rc.triggerRestart(err)
		},
	}
}

func (rc *ResilientClient) wrapData(data DataCallbacks) DataCallbacks {
	return data
}

func (rc *ResilientClient) wrapRequest(req RequestCallbacks) RequestCallbacks {
	return RequestCallbacks{
		OnOK: req.OnOK,
		OnError: func(err error) {
			if req.OnError != nil {
				req.OnError(err)
			}
			rc.triggerRestart(err)
		},
	}
}

// triggerRestart enqueues a restart onto the dispatch loop. It is safe to
// call from any goroutine, including one owned by the delegate itself
// reporting its own failure.
func (rc *ResilientClient) triggerRestart(cause error) {
	select {
	case rc.dispatch <- func() { rc.restart(cause) }:
	case <-rc.done:
	}
}

func (rc *ResilientClient) restart(cause error) {
	rc.log.Warnf("bus client error, restarting: %v", cause)

	if rc.delegate != nil {
		_ = rc.delegate.Stop()
	}

	delegate, err := rc.factory()
	if err != nil {
		rc.fatal(errors.Wrap(err, "constructing replacement bus client"))
		return
	}
	if err := delegate.Start(); err != nil {
		rc.fatal(errors.Wrap(err, "starting replacement bus client"))
		return
	}
	rc.delegate = delegate

	rc.mu.Lock()
	order := append([]string(nil), rc.subOrder...)
	rc.mu.Unlock()

	for _, id := range order {
		rc.mu.Lock()
		rec, ok := rc.subInfo[id]
		rc.mu.Unlock()
		if !ok {
			continue
		}
		rc.delegate.Subscribe(rec.channel, id, rc.wrapData(rec.data), rc.wrapRequest(rec.request), rec.opts)
	}
}

func (rc *ResilientClient) fatal(err error) {
	if rc.onFatal != nil {
		rc.onFatal(err)
	}
}
