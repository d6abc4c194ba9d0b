// Package metrics instruments a session with Prometheus collectors kept in
// a private registry. Since a session is a short-lived process, the registry
// is exported by writing it to a node_exporter textfile on exit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one session.
type Metrics struct {
	registry *prometheus.Registry

	frames       prometheus.Counter
	flushes      prometheus.Counter
	flushedBytes prometheus.Counter
	stepSeconds  prometheus.Observer
	info         *prometheus.GaugeVec
	mode         string
}

// New registers the collectors for a session running in mode ("save" or
// "replay").
func New(mode string) *Metrics {
	reg := prometheus.NewRegistry()

	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simreplay_frames_total",
		Help: "Frames recorded or replayed",
	}, []string{"mode"})
	flushes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simreplay_flushes_total",
		Help: "Buffered frame batches written to disk",
	})
	flushedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simreplay_flushed_bytes_total",
		Help: "Bytes of frame records written to disk",
	})
	steps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simreplay_step_duration_seconds",
		Help:    "Time to capture or restore a frame and step the simulation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"mode"})
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simreplay_session_info",
		Help: "Session being recorded or replayed",
	}, []string{"mode", "session_id"})

	reg.MustRegister(frames, flushes, flushedBytes, steps, info)

	return &Metrics{
		registry:     reg,
		frames:       frames.WithLabelValues(mode),
		flushes:      flushes,
		flushedBytes: flushedBytes,
		stepSeconds:  steps.WithLabelValues(mode),
		info:         info,
		mode:         mode,
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// SetSession records the id of the session's log.
func (m *Metrics) SetSession(id string) {
	m.info.Reset()
	m.info.WithLabelValues(m.mode, id).Set(1)
}

// ObserveFlush matches logfile.WriterOptions.OnFlush.
func (m *Metrics) ObserveFlush(_, bytes int) {
	m.flushes.Inc()
	m.flushedBytes.Add(float64(bytes))
}

// ObserveStep matches session.Options.OnStep.
func (m *Metrics) ObserveStep(_ uint64, d time.Duration) {
	m.frames.Inc()
	m.stepSeconds.Observe(d.Seconds())
}

// WriteToTextfile writes the registry in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
