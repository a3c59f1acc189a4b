package metrics

import (
	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "netlog"
	subsystem        = "observer"
)

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	queued      prometheus.Counter
	queuedBytes prometheus.Counter
	evicted     prometheus.Counter
	evictedSize prometheus.Counter
	dropped     prometheus.Counter
	flushes     prometheus.Counter
	written     prometheus.Counter
	rotations   prometheus.Counter
	openFails   prometheus.Counter
	queueLength prometheus.Gauge
	queueBytes  prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them on registerer.
// The namespace defaults to "netlog"; session is attached as a constant label
// so several observers can share one registry.
func NewPrometheus(registerer prometheus.Registerer, namespace, session string) (*Prometheus, error) {
	if registerer == nil {
		return nil, ewrap.New("prometheus registerer is required")
	}

	if namespace == "" {
		namespace = defaultNamespace
	}

	labels := prometheus.Labels{"session": session}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	p := &Prometheus{
		queued:      counter("entries_queued_total", "Total events accepted by the write queue"),
		queuedBytes: counter("entries_queued_bytes_total", "Total bytes accepted by the write queue"),
		evicted:     counter("entries_evicted_total", "Total events evicted by the queue memory ceiling"),
		evictedSize: counter("entries_evicted_bytes_total", "Total bytes evicted by the queue memory ceiling"),
		dropped:     counter("entries_dropped_total", "Total events dropped because they could not be rendered"),
		flushes:     counter("flushes_total", "Total flushes executed by the file writer"),
		written:     counter("bytes_written_total", "Total event bytes written to disk"),
		rotations:   counter("file_rotations_total", "Total numbered event files opened in bounded mode"),
		openFails:   counter("file_open_failures_total", "Total files the writer failed to open"),
		queueLength: gauge("queue_length", "Current number of queued events"),
		queueBytes:  gauge("queue_bytes", "Current bytes held by the write queue"),
	}

	for _, collector := range p.collectors() {
		err := registerer.Register(collector)
		if err != nil {
			return nil, ewrap.Wrap(err, "registering netlog collector").
				WithMetadata("namespace", namespace).
				WithMetadata("session", session)
		}
	}

	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.queued,
		p.queuedBytes,
		p.evicted,
		p.evictedSize,
		p.dropped,
		p.flushes,
		p.written,
		p.rotations,
		p.openFails,
		p.queueLength,
		p.queueBytes,
	}
}

// EntryQueued implements Recorder.
func (p *Prometheus) EntryQueued(size int64) {
	p.queued.Inc()
	p.queuedBytes.Add(float64(size))
}

// EntryEvicted implements Recorder.
func (p *Prometheus) EntryEvicted(size int64) {
	p.evicted.Inc()
	p.evictedSize.Add(float64(size))
}

// EntryDropped implements Recorder.
func (p *Prometheus) EntryDropped() {
	p.dropped.Inc()
}

// QueueState implements Recorder.
func (p *Prometheus) QueueState(length int, bytes int64) {
	p.queueLength.Set(float64(length))
	p.queueBytes.Set(float64(bytes))
}

// Flushed implements Recorder.
func (p *Prometheus) Flushed(int) {
	p.flushes.Inc()
}

// BytesWritten implements Recorder.
func (p *Prometheus) BytesWritten(n int64) {
	p.written.Add(float64(n))
}

// FileRotated implements Recorder.
func (p *Prometheus) FileRotated() {
	p.rotations.Inc()
}

// FileOpenFailed implements Recorder.
func (p *Prometheus) FileOpenFailed() {
	p.openFails.Inc()
}

var _ Recorder = (*Prometheus)(nil)
