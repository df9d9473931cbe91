// Package metrics hosts the process-wide Prometheus registry. It is
// constructed once at startup (see cmd) and handles are passed downward to
// the bot instance and decode stage; nothing in this package is
// goroutine-unsafe to share.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the counters and histograms the bot instance and decode
// stage report into. One Registry is created per process and shared by
// every bot running in it.
type Registry struct {
	reg *prometheus.Registry

	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	FramesProcessed  *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	FrameBatchSize    prometheus.Histogram
	FrameBatchLatency prometheus.Histogram
	DecodeFailures   *prometheus.CounterVec
}

var (
	once     sync.Once
	instance *Registry
)

// Global returns the process-wide registry, constructing it on first use.
func Global() *Registry {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds an independent registry. Exposed for tests that want isolation
// from the process-wide singleton.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videobot_messages_sent_total",
			Help: "Bot output messages emitted downstream, by kind.",
		}, []string{"bot_id", "kind"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videobot_messages_received_total",
			Help: "Control messages received, by type.",
		}, []string{"bot_id", "type"}),
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videobot_frames_processed_total",
			Help: "Decoded frames handed to the bot image callback.",
		}, []string{"bot_id"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videobot_frames_dropped_total",
			Help: "Frames dropped due to decode failure or contract mismatch.",
		}, []string{"bot_id", "reason"}),
		FrameBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "videobot_frame_batch_size",
			Help:    "Number of frames delivered to the image callback per batch.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 15, 20, 30, 50, 100, 200},
		}),
		FrameBatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "videobot_frame_batch_processing_millis",
			Help:    "Wall-clock time spent inside the image callback per batch.",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 25, 30, 40, 50, 60, 70, 80, 90, 100, 200, 500, 1000},
		}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "videobot_decode_failures_total",
			Help: "Frames that failed to decode and were dropped.",
		}, []string{"codec"}),
	}

	reg.MustRegister(
		r.MessagesSent, r.MessagesReceived, r.FramesProcessed, r.FramesDropped,
		r.FrameBatchSize, r.FrameBatchLatency, r.DecodeFailures,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP /metrics
// endpoint; wiring that endpoint is left to cmd.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
