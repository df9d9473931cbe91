package bot

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rtmbot/videobot/internal/messaging"
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/util"
)

// MergeControl combines frames (a Publisher[Input] carrying only batch
// inputs) with control messages received on
// controlChannel via client, producing a single Publisher[Input] RunBot
// can consume. No ordering is guaranteed across the two origins — only
// within each.
func MergeControl(frames streams.Publisher[Input], client messaging.Client, controlChannel string) streams.Publisher[Input] {
	return streams.PublisherFunc[Input](func(downstream streams.Subscriber[Input]) {
		m := &merger{downstream: downstream, client: client, controlChannel: controlChannel, log: util.GetLogger()}
		m.start(frames)
	})
}

type merger struct {
	downstream streams.Subscriber[Input]
	client     messaging.Client
	controlChannel string
	log        interface {
		Warn(msg string, args ...any)
	}

	mu              sync.Mutex
	buffer          []Input
	demand          int64
	totalDemand     int64
	draining        bool
	cancelled       bool
	completed       bool
	subID           string
	framesSub       streams.Subscription
	framesRequested int64
	framesDone      bool
}

func (m *merger) start(frames streams.Publisher[Input]) {
	m.downstream.OnSubscribe(&mergerSubscription{m: m})

	frames.Subscribe(&frameRelay{m: m})

	m.subID = "control"
	m.client.Subscribe(m.controlChannel, m.subID, messaging.DataCallbacks{
		OnData: m.onControl,
	}, messaging.RequestCallbacks{
		OnError: func(err error) { m.fail(errors.Wrap(err, "subscribing to control channel")) },
	}, messaging.SubscribeOptions{})
}

func (m *merger) onControl(msg messaging.Message) {
	var payload any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		m.log.Warn("dropping malformed control message", "error", err)
		return
	}
	m.deliver(NewControlInput(payload))
}

func (m *merger) deliver(in Input) {
	m.mu.Lock()
	if m.cancelled || m.completed {
		m.mu.Unlock()
		return
	}
	m.buffer = append(m.buffer, in)
	m.mu.Unlock()
	m.pump()
}

func (m *merger) pump() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for {
		if m.cancelled || m.completed || m.demand <= 0 || len(m.buffer) == 0 {
			break
		}
		item := m.buffer[0]
		m.buffer = m.buffer[1:]
		m.demand--
		m.mu.Unlock()
		m.downstream.OnNext(item)
		m.mu.Lock()
	}
	allDone := m.framesDone && len(m.buffer) == 0 && !m.completed && !m.cancelled
	m.draining = false
	m.mu.Unlock()
	if allDone {
		m.completeOnce()
	}
}

func (m *merger) completeOnce() {
	m.mu.Lock()
	if m.completed {
		m.mu.Unlock()
		return
	}
	m.completed = true
	m.mu.Unlock()
	m.client.Unsubscribe(m.subID, messaging.PublishCallbacks{})
	m.downstream.OnComplete()
}

func (m *merger) request(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	if m.cancelled || m.completed {
		m.mu.Unlock()
		return
	}
	m.demand += n
	m.totalDemand += n
	m.mu.Unlock()
	m.pump()
	m.forwardToFrames()
}

// forwardToFrames requests from the frames origin whatever cumulative
// downstream demand hasn't been forwarded to it yet. It is a no-op until
// the frames Publisher has actually subscribed (framesSub is set); once
// it does, frameRelay.OnSubscribe calls it again so no demand requested
// before that point is lost. Every unit of downstream demand is forwarded
// to both origins, which can over-request the frames side slightly when
// some of that demand ends up satisfied by a control message instead —
// harmless, since demand is purely additive and excess simply goes unused.
func (m *merger) forwardToFrames() {
	m.mu.Lock()
	sub := m.framesSub
	pending := m.totalDemand - m.framesRequested
	if sub == nil || pending <= 0 {
		m.mu.Unlock()
		return
	}
	m.framesRequested += pending
	m.mu.Unlock()
	sub.Request(pending)
}

func (m *merger) fail(err error) {
	m.mu.Lock()
	if m.cancelled || m.completed {
		m.mu.Unlock()
		return
	}
	m.completed = true
	m.mu.Unlock()
	m.client.Unsubscribe(m.subID, messaging.PublishCallbacks{})
	if m.framesSub != nil {
		m.framesSub.Cancel()
	}
	m.downstream.OnError(err)
}

func (m *merger) cancel() {
	m.mu.Lock()
	if m.cancelled {
		m.mu.Unlock()
		return
	}
	m.cancelled = true
	m.mu.Unlock()
	m.client.Unsubscribe(m.subID, messaging.PublishCallbacks{})
	if m.framesSub != nil {
		m.framesSub.Cancel()
	}
}

type mergerSubscription struct{ m *merger }

func (s *mergerSubscription) Request(n int64) { s.m.request(n) }
func (s *mergerSubscription) Cancel()         { s.m.cancel() }

// frameRelay subscribes to the frames-origin Publisher[Input] and feeds
// every element into the merger's shared buffer.
type frameRelay struct{ m *merger }

func (r *frameRelay) OnSubscribe(sub streams.Subscription) {
	r.m.mu.Lock()
	r.m.framesSub = sub
	r.m.mu.Unlock()
	r.m.forwardToFrames()
}

func (r *frameRelay) OnNext(in Input) { r.m.deliver(in) }

func (r *frameRelay) OnComplete() {
	r.m.mu.Lock()
	r.m.framesDone = true
	empty := len(r.m.buffer) == 0
	r.m.mu.Unlock()
	if empty {
		r.m.completeOnce()
	}
}

func (r *frameRelay) OnError(err error) { r.m.fail(err) }
