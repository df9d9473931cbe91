package bot

import (
	"github.com/rtmbot/videobot/internal/streams"
	"github.com/rtmbot/videobot/internal/streams/generators"
	"github.com/rtmbot/videobot/internal/util"
)

// RunBot is the run_bot() operator: it transforms a Publisher[Input]
// into a Publisher[Output], running inst's startup configure handshake
// before the first element and appending inst's shutdown handshake
// after upstream completes.
func RunBot(pub streams.Publisher[Input], inst *Instance) streams.Publisher[Output] {
	main := streams.PublisherFunc[Output](func(downstream streams.Subscriber[Output]) {
		initial, err := inst.Configure()
		if err != nil {
			downstream.OnSubscribe(noopSubscription{})
			downstream.OnError(err)
			return
		}
		s := &runStage{inst: inst, downstream: downstream, buffer: initial}
		pub.Subscribe(s)
	})
	shutdown := generators.Stateful(shutdownInit, shutdownPump(inst))
	return streams.Concat(main, shutdown)
}

type shutdownState struct {
	outs    []Output
	pos     int
	invoked bool
}

func shutdownInit() *shutdownState { return &shutdownState{} }

func shutdownPump(inst *Instance) func(*shutdownState, streams.Sink[Output]) {
	return func(st *shutdownState, sink streams.Sink[Output]) {
		if !st.invoked {
			st.invoked = true
			outs, err := inst.Shutdown()
			if err != nil {
				// Shutdown only drains messages this instance queued itself
				// with non-nil data, so a contract violation here would be
				// an internal bug rather than caller misuse; there is no
				// OnError surface on a generator sink, so log and end the
				// stream rather than emit anything further.
				util.GetLogger().Warn("shutdown handshake produced a contract violation", "error", err)
				sink.OnComplete()
				return
			}
			st.outs = outs
		}
		if st.pos < len(st.outs) {
			item := st.outs[st.pos]
			st.pos++
			sink.OnNext(item)
			return
		}
		sink.OnComplete()
	}
}

// runStage drains a Publisher[Input] through inst.Process, buffering the
// (possibly multi-element) output of each input before handing it
// downstream one element at a time, respecting demand exactly like
// decode.stage and transcode.VP9.
type runStage struct {
	inst       *Instance
	downstream streams.Subscriber[Output]
	upstream   streams.Subscription

	buffer       []Output
	demand       int64
	draining     bool
	upstreamDone bool
	cancelled    bool
	completed    bool
}

func (s *runStage) OnSubscribe(sub streams.Subscription) {
	s.upstream = sub
	s.downstream.OnSubscribe(&runStageSubscription{s: s})
}

func (s *runStage) OnNext(in Input) {
	if s.cancelled || s.completed {
		return
	}
	outs, err := s.inst.Process(in)
	if err != nil {
		s.fail(err)
		return
	}
	s.buffer = append(s.buffer, outs...)
}

func (s *runStage) OnComplete() {
	if s.cancelled || s.completed {
		return
	}
	s.upstreamDone = true
}

func (s *runStage) OnError(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	s.downstream.OnError(err)
}

func (s *runStage) fail(err error) {
	if s.cancelled || s.completed {
		return
	}
	s.completed = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
	s.downstream.OnError(err)
}

func (s *runStage) request(n int64) {
	if n <= 0 || s.cancelled || s.completed {
		return
	}
	s.demand += n
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	for !s.cancelled && !s.completed {
		if len(s.buffer) > 0 && s.demand > 0 {
			item := s.buffer[0]
			s.buffer = s.buffer[1:]
			s.demand--
			s.downstream.OnNext(item)
			continue
		}
		if len(s.buffer) == 0 && s.upstreamDone {
			s.completed = true
			s.downstream.OnComplete()
			return
		}
		if s.demand <= 0 {
			return
		}
		s.upstream.Request(1)
	}
}

func (s *runStage) cancel() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.upstream != nil {
		s.upstream.Cancel()
	}
}

type runStageSubscription struct {
	s *runStage
}

func (sub *runStageSubscription) Request(n int64) { sub.s.request(n) }
func (sub *runStageSubscription) Cancel()         { sub.s.cancel() }

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}
