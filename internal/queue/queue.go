// Package queue implements the memory-capped FIFO that sits between the
// goroutines producing log events and the single worker writing them to disk.
//
// Producers append with AddEntry. When the running byte total exceeds the
// ceiling the oldest entries are evicted, so a producer that outpaces the
// worker loses its oldest unflushed events rather than the newest ones. The
// worker takes the whole backlog at once with DrainInto.
package queue

import (
	"math"
	"sync"

	"github.com/hyp3rd/netlog/pkg/metrics"
)

// NoLimit disables the ceiling.
const NoLimit int64 = math.MaxInt64

// Event is one pre-rendered log event. It is never mutated once queued.
type Event []byte

// Size reports the number of bytes accounted against the queue ceiling.
func (e Event) Size() int64 {
	return int64(len(e))
}

// WriteQueue is a byte-bounded FIFO of events safe for concurrent use.
// A single mutex guards both the entries and the running total.
type WriteQueue struct {
	mu       sync.Mutex
	entries  []Event
	head     int
	memory   int64
	maxBytes int64
	recorder metrics.Recorder
}

// New returns a queue whose running total never exceeds maxBytes, except when a
// single event is larger than maxBytes on its own. A non-positive maxBytes is
// treated as NoLimit.
func New(maxBytes int64, recorder metrics.Recorder) *WriteQueue {
	if maxBytes <= 0 {
		maxBytes = NoLimit
	}

	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return &WriteQueue{
		maxBytes: maxBytes,
		recorder: recorder,
	}
}

// AddEntry appends event and evicts the oldest entries while the running total
// is above the ceiling. It returns the number of queued events after eviction.
func (q *WriteQueue) AddEntry(event Event) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, event)
	q.memory += event.Size()

	// The newest event is kept even when it alone exceeds the ceiling.
	for q.memory > q.maxBytes && q.len() > 1 {
		q.evictOldest()
	}

	length := q.len()

	q.recorder.EntryQueued(event.Size())
	q.recorder.QueueState(length, q.memory)

	return length
}

// DrainInto moves every queued event into dst and resets the running total.
// dst must be empty; its backing array is kept as storage for future entries,
// which lets the worker and producers trade buffers without reallocating.
// The returned slice holds the drained events in arrival order.
func (q *WriteQueue) DrainInto(dst []Event) []Event {
	spare := dst[:0]

	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.entries[q.head:]

	q.entries = spare
	q.head = 0
	q.memory = 0

	q.recorder.QueueState(0, 0)

	return drained
}

// Len returns the number of queued events.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.len()
}

// Size returns the running byte total of queued events.
func (q *WriteQueue) Size() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.memory
}

// MaxBytes returns the configured ceiling.
func (q *WriteQueue) MaxBytes() int64 {
	return q.maxBytes
}

func (q *WriteQueue) len() int {
	return len(q.entries) - q.head
}

// evictOldest must be called with q.mu held and a non-empty queue.
func (q *WriteQueue) evictOldest() {
	oldest := q.entries[q.head]
	q.entries[q.head] = nil
	q.head++
	q.memory -= oldest.Size()

	q.recorder.EntryEvicted(oldest.Size())

	// Reclaim the evicted prefix once it dominates the backing array.
	if q.head > len(q.entries)/2 {
		remaining := copy(q.entries, q.entries[q.head:])
		clear(q.entries[remaining:])
		q.entries = q.entries[:remaining]
		q.head = 0
	}
}
