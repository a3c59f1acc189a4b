package netlog

import "github.com/hyp3rd/ewrap"

var (
	// ErrInvalidPath is returned when the configuration names no usable log file.
	ErrInvalidPath = ewrap.New("invalid netlog path")
	// ErrInvalidMaxTotalSize is returned for a non-positive total size, or a
	// bounded total smaller than the number of event files.
	ErrInvalidMaxTotalSize = ewrap.New("invalid max total size")
	// ErrInvalidNumEventFiles is returned when the number of event files is not positive.
	ErrInvalidNumEventFiles = ewrap.New("number of event files must be greater than zero")
	// ErrInvalidFlushThreshold is returned when the flush threshold is not positive.
	ErrInvalidFlushThreshold = ewrap.New("flush threshold must be greater than zero")
	// ErrInvalidCaptureMode is returned for an unknown capture mode.
	ErrInvalidCaptureMode = ewrap.New("invalid capture mode")
	// ErrInvalidCompressionLevel is returned for a gzip level outside [-2, 9].
	ErrInvalidCompressionLevel = ewrap.New("invalid compression level")

	// ErrNilSource is returned when StartObserving is given no source.
	ErrNilSource = ewrap.New("netlog source is nil")
	// ErrAlreadyStarted is returned when StartObserving is called twice.
	ErrAlreadyStarted = ewrap.New("file observer already started")
	// ErrObserverClosed is returned when starting an observer that was closed.
	ErrObserverClosed = ewrap.New("file observer is closed")
	// ErrObserverRegistered is returned by Bus.AddObserver for a duplicate observer.
	ErrObserverRegistered = ewrap.New("observer already registered")
	// ErrNilObserver is returned by Bus.AddObserver for a nil observer.
	ErrNilObserver = ewrap.New("observer is nil")
)
