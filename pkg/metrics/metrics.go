// Package metrics exposes the counters produced by a netlog session.
//
// Every component reports through the Recorder interface. NewNoop returns a
// recorder that discards everything; NewPrometheus returns one backed by
// Prometheus collectors registered on the caller's registry.
package metrics

// Recorder receives events from the queue, the writer and the observer.
// Implementations must be safe for concurrent use: queue methods run on the
// producer goroutines, writer methods on the worker goroutine.
type Recorder interface {
	// EntryQueued is called for every event accepted by the queue.
	EntryQueued(size int64)
	// EntryEvicted is called for every event dropped by the queue ceiling.
	EntryEvicted(size int64)
	// EntryDropped is called when an entry could not be rendered.
	EntryDropped()
	// QueueState reports the queue length and byte total after a mutation.
	QueueState(length int, bytes int64)
	// Flushed is called once per writer flush with the number of drained events.
	Flushed(events int)
	// BytesWritten is called with the number of event bytes that reached disk.
	BytesWritten(n int64)
	// FileRotated is called whenever the writer opens a new numbered event file.
	FileRotated()
	// FileOpenFailed is called whenever the writer fails to open a file.
	FileOpenFailed()
}

type noop struct{}

// NewNoop returns a Recorder that discards every observation.
func NewNoop() Recorder {
	return noop{}
}

func (noop) EntryQueued(int64) {}
func (noop) EntryEvicted(int64) {}
func (noop) EntryDropped() {}
func (noop) QueueState(int, int64) {}
func (noop) Flushed(int) {}
func (noop) BytesWritten(int64) {}
func (noop) FileRotated() {}
func (noop) FileOpenFailed() {}

// Multi fans every observation out to all given recorders.
func Multi(recorders ...Recorder) Recorder {
	valid := make(multi, 0, len(recorders))

	for _, r := range recorders {
		if r != nil {
			valid = append(valid, r)
		}
	}

	if len(valid) == 0 {
		return NewNoop()
	}

	if len(valid) == 1 {
		return valid[0]
	}

	return valid
}

type multi []Recorder

func (m multi) EntryQueued(size int64) {
	for _, r := range m {
		r.EntryQueued(size)
	}
}

func (m multi) EntryEvicted(size int64) {
	for _, r := range m {
		r.EntryEvicted(size)
	}
}

func (m multi) EntryDropped() {
	for _, r := range m {
		r.EntryDropped()
	}
}

func (m multi) QueueState(length int, bytes int64) {
	for _, r := range m {
		r.QueueState(length, bytes)
	}
}

func (m multi) Flushed(events int) {
	for _, r := range m {
		r.Flushed(events)
	}
}

func (m multi) BytesWritten(n int64) {
	for _, r := range m {
		r.BytesWritten(n)
	}
}

func (m multi) FileRotated() {
	for _, r := range m {
		r.FileRotated()
	}
}

func (m multi) FileOpenFailed() {
	for _, r := range m {
		r.FileOpenFailed()
	}
}
