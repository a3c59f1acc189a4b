package netlog

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog/internal/filewriter"
	"github.com/hyp3rd/netlog/internal/queue"
	"github.com/hyp3rd/netlog/internal/taskrunner"
	"github.com/hyp3rd/netlog/pkg/log"
	"github.com/hyp3rd/netlog/pkg/metrics"
)

// FileObserver is the ingestion front of a netlog session. It is registered on
// a Source, renders every entry it receives and appends it to a bounded queue.
// All file I/O happens on a dedicated background goroutine, so OnAddEntry never
// blocks on the disk.
//
// A FileObserver records a single session: StartObserving, any number of
// entries, then StopObserving. Close must always be called; when the session
// was never stopped it deletes every file written so far.
type FileObserver struct {
	queue    *queue.WriteQueue
	writer   *filewriter.Writer
	runner   *taskrunner.Runner
	renderer Renderer
	logger   log.Logger
	recorder metrics.Recorder
	stats    *statsRecorder

	flushThreshold int
	captureMode    CaptureMode
	constants      any

	mu      sync.Mutex
	source  Source
	started bool
	stopped bool
	closed  bool
}

// New validates cfg and returns an observer ready to start.
func New(cfg Config) (*FileObserver, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoop()
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = JSONRenderer{}
	}

	stats := &statsRecorder{}
	recorder := metrics.Multi(stats, cfg.Metrics)

	writer, err := filewriter.New(filewriter.Options{
		Path:             cfg.Path,
		MaxEventFileSize: cfg.MaxEventFileSize(),
		NumEventFiles:    cfg.NumEventFiles,
		FileMode:         cfg.FileMode,
		Compress:         cfg.Compress,
		CompressionLevel: cfg.CompressionLevel,
		Logger:           logger,
		Recorder:         recorder,
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "creating netlog writer")
	}

	return &FileObserver{
		queue:          queue.New(cfg.QueueCeiling(), recorder),
		writer:         writer,
		runner:         taskrunner.New(logger),
		renderer:       renderer,
		logger:         logger,
		recorder:       recorder,
		stats:          stats,
		flushThreshold: cfg.FlushThreshold,
		captureMode:    cfg.CaptureMode,
		constants:      cfg.Constants,
	}, nil
}

// NewBounded returns an observer that keeps at most maxTotalSize bytes of
// events on disk, rotated across DefaultNumEventFiles files.
func NewBounded(path string, maxTotalSize int64, constants any) (*FileObserver, error) {
	cfg := DefaultConfig(path)
	cfg.MaxTotalSize = maxTotalSize
	cfg.Constants = constants

	return New(cfg)
}

// NewUnbounded returns an observer streaming every event into path.
func NewUnbounded(path string, constants any) (*FileObserver, error) {
	cfg := DefaultConfig(path)
	cfg.Constants = constants

	return New(cfg)
}

// Path returns the final log file.
func (o *FileObserver) Path() string {
	return o.writer.Path()
}

// Start is StartObserving at the capture mode of the configuration.
func (o *FileObserver) Start(source Source) error {
	return o.StartObserving(source, o.captureMode)
}

// StartObserving schedules the writer initialization and registers the
// observer on source at mode. Initialization is posted first, so every flush
// triggered by an entry runs after it.
func (o *FileObserver) StartObserving(source Source, mode CaptureMode) error {
	if source == nil {
		return ErrNilSource
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrObserverClosed
	}

	if o.started {
		return ErrAlreadyStarted
	}

	header := o.constants
	if header == nil {
		header = DefaultConstants(mode)
	}

	err := o.runner.Post(func() { o.writer.Initialize(header) })
	if err != nil {
		return ewrap.Wrap(err, "scheduling netlog initialization")
	}

	o.started = true

	err = source.AddObserver(o, mode)
	if err != nil {
		// The session never received entries: behave like a teardown.
		o.stopped = true
		_ = o.runner.Post(o.writer.DeleteAllFiles)

		return ewrap.Wrap(err, "registering file observer").
			WithMetadata("capture_mode", mode.String())
	}

	o.source = source

	return nil
}

// OnAddEntry renders entry and queues it. Entries that fail to render are
// dropped. Reaching the flush threshold schedules a flush.
func (o *FileObserver) OnAddEntry(entry Entry) {
	rendered, err := o.renderer.Render(entry)
	if err != nil {
		o.recorder.EntryDropped()
		o.logger.WithError(err).WithField("type", entry.Type).Debug("dropping netlog entry")

		return
	}

	if o.queue.AddEntry(queue.Event(rendered)) != o.flushThreshold {
		return
	}

	err = o.runner.Post(o.flush)
	if err != nil {
		o.logger.WithError(err).Debug("netlog flush not scheduled")
	}
}

// StopObserving deregisters the observer and schedules a final flush followed
// by the writer stop as one unit. polledData becomes the "polledData" member
// of the log; nil or unencodable values omit it. done, when not nil, is called
// on a completion goroutine once the log file is complete, and may call Close.
// If the session is not running done is called immediately.
func (o *FileObserver) StopObserving(polledData any, done func()) {
	o.mu.Lock()

	if !o.started || o.stopped || o.closed {
		o.mu.Unlock()

		if done != nil {
			done()
		}

		return
	}

	o.stopped = true
	o.detachLocked()

	err := o.runner.PostAndReply(func() { o.writer.FlushThenStop(o.queue, polledData) }, done)
	o.mu.Unlock()

	if err != nil {
		o.logger.WithError(err).Warn("netlog stop not scheduled")

		if done != nil {
			done()
		}
	}
}

// Stop is StopObserving waiting for the log file to be complete or for ctx to
// be done, whichever happens first. The stop keeps running in the background
// after ctx expires.
func (o *FileObserver) Stop(ctx context.Context, polledData any) error {
	done := make(chan struct{})

	o.StopObserving(polledData, func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ewrap.Wrap(ctx.Err(), "waiting for netlog stop").
			WithMetadata("path", o.Path())
	}
}

// Close releases the observer. A session that was started but never stopped is
// abandoned: the observer is deregistered and every file it wrote is deleted.
// Close blocks until the background goroutine ran every scheduled task, which
// includes a pending stop. Calling it more than once is safe.
func (o *FileObserver) Close() {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return
	}

	o.closed = true

	if o.started && !o.stopped {
		o.detachLocked()

		err := o.runner.Post(o.writer.DeleteAllFiles)
		if err != nil {
			o.logger.WithError(err).Warn("netlog cleanup not scheduled")
		}
	}

	o.mu.Unlock()

	o.runner.Shutdown()
}

// Stats returns a snapshot of the session counters.
func (o *FileObserver) Stats() Stats {
	return o.stats.snapshot()
}

func (o *FileObserver) flush() {
	o.writer.Flush(o.queue)
}

// detachLocked must be called with o.mu held.
func (o *FileObserver) detachLocked() {
	if o.source == nil {
		return
	}

	o.source.RemoveObserver(o)
	o.source = nil
}
