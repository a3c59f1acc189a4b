package netlog

import (
	"compress/gzip"
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog/internal/constants"
	"github.com/hyp3rd/netlog/internal/queue"
	"github.com/hyp3rd/netlog/pkg/log"
	"github.com/hyp3rd/netlog/pkg/metrics"
)

const (
	// NoLimit as MaxTotalSize selects unbounded mode: every event is streamed
	// into the final file and the queue has no ceiling.
	NoLimit = queue.NoLimit
	// DefaultNumEventFiles is the number of rotation slots in bounded mode.
	DefaultNumEventFiles = constants.DefaultNumEventFiles
	// DefaultFlushThreshold is the queue length at which a flush is scheduled.
	DefaultFlushThreshold = constants.DefaultFlushThreshold
	// LogFilePermissions are the default permissions of written files.
	LogFilePermissions os.FileMode = constants.LogFilePermissions
)

// Config holds the configuration of a FileObserver.
type Config struct {
	// Path is the final log file.
	Path string
	// MaxTotalSize caps the bytes kept on disk across all event files. NoLimit
	// selects unbounded mode. The in-memory queue is capped at twice this value.
	MaxTotalSize int64
	// NumEventFiles is the number of rotation slots in bounded mode.
	NumEventFiles int
	// FlushThreshold is the queue length that triggers a background flush.
	FlushThreshold int
	// CaptureMode is the granularity used by FileObserver.Start.
	CaptureMode CaptureMode
	// Constants is the header of the log. Nil means DefaultConstants.
	Constants any
	// Renderer turns entries into text. Nil means JSONRenderer.
	Renderer Renderer
	// FileMode sets the permissions of created files.
	FileMode os.FileMode
	// Compress gzips the final log to "<path>.gz" once stopped.
	Compress bool
	// CompressionLevel is the gzip level used when Compress is set.
	CompressionLevel int
	// Logger receives diagnostics. Nil discards them.
	Logger log.Logger
	// Metrics receives queue and writer counters in addition to Stats.
	Metrics metrics.Recorder
}

// DefaultConfig returns an unbounded configuration writing to path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		MaxTotalSize:     NoLimit,
		NumEventFiles:    DefaultNumEventFiles,
		FlushThreshold:   DefaultFlushThreshold,
		CaptureMode:      CaptureModeDefault,
		FileMode:         LogFilePermissions,
		CompressionLevel: gzip.DefaultCompression,
	}
}

// IsBounded reports whether the configuration rotates across event files.
func (c *Config) IsBounded() bool {
	return c.MaxTotalSize != NoLimit
}

// MaxEventFileSize returns the cap of each event file, NoLimit when unbounded.
func (c *Config) MaxEventFileSize() int64 {
	if !c.IsBounded() {
		return NoLimit
	}

	return c.MaxTotalSize / int64(c.NumEventFiles)
}

// QueueCeiling returns the byte ceiling of the in-memory queue.
func (c *Config) QueueCeiling() int64 {
	if !c.IsBounded() || c.MaxTotalSize > NoLimit/2 {
		return NoLimit
	}

	return 2 * c.MaxTotalSize
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrInvalidPath
	}

	return c.ValidateLimits()
}

// ValidateLimits checks every field but Path. Loaders use it on partial
// configurations whose path is supplied later.
func (c *Config) ValidateLimits() error {
	if c.NumEventFiles <= 0 {
		return ewrap.Wrap(ErrInvalidNumEventFiles, "validating config").
			WithMetadata("num_event_files", c.NumEventFiles)
	}

	if c.MaxTotalSize <= 0 || (c.IsBounded() && c.MaxTotalSize < int64(c.NumEventFiles)) {
		return ewrap.Wrap(ErrInvalidMaxTotalSize, "validating config").
			WithMetadata("max_total_size", c.MaxTotalSize).
			WithMetadata("num_event_files", c.NumEventFiles)
	}

	if c.FlushThreshold <= 0 {
		return ewrap.Wrap(ErrInvalidFlushThreshold, "validating config").
			WithMetadata("flush_threshold", c.FlushThreshold)
	}

	if !c.CaptureMode.IsValid() {
		return ewrap.Wrap(ErrInvalidCaptureMode, "validating config").
			WithMetadata("capture_mode", uint8(c.CaptureMode))
	}

	if c.CompressionLevel < gzip.HuffmanOnly || c.CompressionLevel > gzip.BestCompression {
		return ewrap.Wrap(ErrInvalidCompressionLevel, "validating config").
			WithMetadata("compression_level", c.CompressionLevel)
	}

	return nil
}
