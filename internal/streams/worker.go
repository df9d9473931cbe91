package streams

import (
	"sync"
)

// ThreadedWorker decouples upstream and downstream by handing elements
// through a bounded single-producer single-consumer queue serviced by a
// dedicated goroutine. While the queue is full, upstream's demand is
// withheld: the worker only requests one more element from upstream after
// it has dequeued and forwarded one downstream. The upstream's terminal
// signal (complete or error) is enqueued like any other element and
// emitted only after every buffered element has been delivered.
func ThreadedWorker[T any](name string, upstream Publisher[T], queueSize int) Publisher[T] {
	if queueSize <= 0 {
		queueSize = 1
	}
	return PublisherFunc[T](func(downstream Subscriber[T]) {
		w := &worker[T]{name: name, queue: make(chan workerMsg[T], queueSize+1), queueSize: queueSize}
		w.cond = sync.NewCond(&w.mu)
		upstream.Subscribe(&workerUpstreamSubscriber[T]{w: w})
		downstream.OnSubscribe(&workerSubscription[T]{w: w})
		go w.run(downstream)
	})
}

type workerMsgKind int

const (
	workerMsgItem workerMsgKind = iota
	workerMsgComplete
	workerMsgError
)

type workerMsg[T any] struct {
	kind workerMsgKind
	item T
	err  error
}

type worker[T any] struct {
	name       string
	queue      chan workerMsg[T]
	queueSize  int
	upstream   Subscription
	mu         sync.Mutex
	cond       *sync.Cond
	demand     int64
	cancelled  bool
	started    bool
}

func (w *worker[T]) run(downstream Subscriber[T]) {
	for {
		msg, ok := <-w.queue
		if !ok {
			return
		}

		// Only elements consume demand; a terminal signal is delivered as
		// soon as it is dequeued.
		w.mu.Lock()
		if msg.kind == workerMsgItem {
			for w.demand <= 0 && !w.cancelled {
				w.cond.Wait()
			}
			if !w.cancelled {
				w.demand--
			}
		}
		cancelled := w.cancelled
		w.mu.Unlock()
		if cancelled {
			return
		}

		switch msg.kind {
		case workerMsgItem:
			downstream.OnNext(msg.item)
			if w.upstream != nil {
				w.upstream.Request(1)
			}
		case workerMsgComplete:
			downstream.OnComplete()
			return
		case workerMsgError:
			downstream.OnError(msg.err)
			return
		}
	}
}

type workerUpstreamSubscriber[T any] struct {
	w *worker[T]
}

func (u *workerUpstreamSubscriber[T]) OnSubscribe(sub Subscription) {
	u.w.upstream = sub
	sub.Request(int64(u.w.queueSize))
}

func (u *workerUpstreamSubscriber[T]) OnNext(item T) {
	u.w.queue <- workerMsg[T]{kind: workerMsgItem, item: item}
}

func (u *workerUpstreamSubscriber[T]) OnComplete() {
	u.w.queue <- workerMsg[T]{kind: workerMsgComplete}
	close(u.w.queue)
}

func (u *workerUpstreamSubscriber[T]) OnError(err error) {
	u.w.queue <- workerMsg[T]{kind: workerMsgError, err: err}
	close(u.w.queue)
}

type workerSubscription[T any] struct {
	w *worker[T]
}

func (s *workerSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	w := s.w
	w.mu.Lock()
	w.demand += n
	w.cond.Signal()
	w.mu.Unlock()
}

func (s *workerSubscription[T]) Cancel() {
	w := s.w
	w.mu.Lock()
	if w.cancelled {
		w.mu.Unlock()
		return
	}
	w.cancelled = true
	w.cond.Signal()
	w.mu.Unlock()
	if w.upstream != nil {
		w.upstream.Cancel()
	}
}
