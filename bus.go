package netlog

import (
	"sync"
	"time"
)

// Observer receives entries from a Source.
type Observer interface {
	// OnAddEntry is called synchronously on the goroutine publishing entry. It
	// must not block and must not add or remove observers on the same source.
	OnAddEntry(entry Entry)
}

// Source publishes entries to registered observers. Implementations own their
// thread-safety and the capture mode filtering.
type Source interface {
	AddObserver(observer Observer, mode CaptureMode) error
	RemoveObserver(observer Observer)
}

// Bus is an in-process Source. It is safe for concurrent use: entries may be
// published from any number of goroutines while observers come and go. Once
// RemoveObserver returns, the removed observer receives no further entries.
type Bus struct {
	mu        sync.RWMutex
	observers map[Observer]CaptureMode
	now       func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		observers: make(map[Observer]CaptureMode),
		now:       time.Now,
	}
}

// AddObserver registers observer at the given capture mode.
func (b *Bus) AddObserver(observer Observer, mode CaptureMode) error {
	if observer == nil {
		return ErrNilObserver
	}

	if !mode.IsValid() {
		return ErrInvalidCaptureMode
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.observers[observer]; ok {
		return ErrObserverRegistered
	}

	b.observers[observer] = mode

	return nil
}

// RemoveObserver deregisters observer. Unknown observers are ignored.
func (b *Bus) RemoveObserver(observer Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.observers, observer)
}

// Observers returns the number of registered observers.
func (b *Bus) Observers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.observers)
}

// IsCapturing reports whether any observer would receive an entry requiring
// mode. Publishers can use it to skip building expensive params.
func (b *Bus) IsCapturing(mode CaptureMode) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, observerMode := range b.observers {
		if observerMode.Admits(mode) {
			return true
		}
	}

	return false
}

// AddEntry delivers entry to every observer whose capture mode admits it.
func (b *Bus) AddEntry(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for observer, mode := range b.observers {
		if mode.Admits(entry.Mode) {
			observer.OnAddEntry(entry)
		}
	}
}
