package netlog

import "sync/atomic"

// Stats is a snapshot of the counters of a FileObserver.
type Stats struct {
	// Queued is the number of events accepted by the queue.
	Queued uint64 `json:"queued"`
	// QueuedBytes is the size of all accepted events.
	QueuedBytes uint64 `json:"queued_bytes"`
	// Evicted is the number of events dropped by the queue ceiling.
	Evicted uint64 `json:"evicted"`
	// EvictedBytes is the size of all evicted events.
	EvictedBytes uint64 `json:"evicted_bytes"`
	// RenderDropped is the number of entries that could not be rendered.
	RenderDropped uint64 `json:"render_dropped"`
	// Flushes is the number of flushes run by the writer.
	Flushes uint64 `json:"flushes"`
	// FlushedEvents is the number of events drained by those flushes.
	FlushedEvents uint64 `json:"flushed_events"`
	// BytesWritten is the number of event bytes that reached disk.
	BytesWritten uint64 `json:"bytes_written"`
	// Rotations is the number of event files opened in bounded mode.
	Rotations uint64 `json:"rotations"`
	// OpenFailures is the number of files the writer could not open.
	OpenFailures uint64 `json:"open_failures"`
	// QueueLength is the queue length after the last mutation.
	QueueLength int `json:"queue_length"`
	// QueueBytes is the queue byte total after the last mutation.
	QueueBytes int64 `json:"queue_bytes"`
}

// statsRecorder collects Stats. It implements metrics.Recorder so that it can
// sit next to a user recorder in metrics.Multi.
type statsRecorder struct {
	queued        atomic.Uint64
	queuedBytes   atomic.Uint64
	evicted       atomic.Uint64
	evictedBytes  atomic.Uint64
	renderDropped atomic.Uint64
	flushes       atomic.Uint64
	flushedEvents atomic.Uint64
	bytesWritten  atomic.Uint64
	rotations     atomic.Uint64
	openFailures  atomic.Uint64
	queueLength   atomic.Int64
	queueBytes    atomic.Int64
}

func (s *statsRecorder) EntryQueued(size int64) {
	s.queued.Add(1)
	s.queuedBytes.Add(uint64(size))
}

func (s *statsRecorder) EntryEvicted(size int64) {
	s.evicted.Add(1)
	s.evictedBytes.Add(uint64(size))
}

func (s *statsRecorder) EntryDropped() { s.renderDropped.Add(1) }

func (s *statsRecorder) QueueState(length int, bytes int64) {
	s.queueLength.Store(int64(length))
	s.queueBytes.Store(bytes)
}

func (s *statsRecorder) Flushed(events int) {
	s.flushes.Add(1)
	s.flushedEvents.Add(uint64(events))
}

func (s *statsRecorder) BytesWritten(n int64) { s.bytesWritten.Add(uint64(n)) }

func (s *statsRecorder) FileRotated() { s.rotations.Add(1) }

func (s *statsRecorder) FileOpenFailed() { s.openFailures.Add(1) }

func (s *statsRecorder) snapshot() Stats {
	return Stats{
		Queued:        s.queued.Load(),
		QueuedBytes:   s.queuedBytes.Load(),
		Evicted:       s.evicted.Load(),
		EvictedBytes:  s.evictedBytes.Load(),
		RenderDropped: s.renderDropped.Load(),
		Flushes:       s.flushes.Load(),
		FlushedEvents: s.flushedEvents.Load(),
		BytesWritten:  s.bytesWritten.Load(),
		Rotations:     s.rotations.Load(),
		OpenFailures:  s.openFailures.Load(),
		QueueLength:   int(s.queueLength.Load()),
		QueueBytes:    s.queueBytes.Load(),
	}
}
