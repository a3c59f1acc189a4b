package netlog

import (
	"os"

	"github.com/hyp3rd/netlog/pkg/log"
	"github.com/hyp3rd/netlog/pkg/metrics"
)

// ConfigBuilder provides a fluent API for constructing observer configurations.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a builder starting from DefaultConfig(path).
func NewConfigBuilder(path string) *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig(path)}
}

// WithPath sets the final log file.
func (b *ConfigBuilder) WithPath(path string) *ConfigBuilder {
	b.config.Path = path

	return b
}

// WithMaxTotalSize bounds the bytes kept on disk and switches to rotation.
// Example: builder.WithMaxTotalSize(100 << 20).
func (b *ConfigBuilder) WithMaxTotalSize(size int64) *ConfigBuilder {
	b.config.MaxTotalSize = size

	return b
}

// WithUnbounded streams every event into the final file.
func (b *ConfigBuilder) WithUnbounded() *ConfigBuilder {
	b.config.MaxTotalSize = NoLimit

	return b
}

// WithNumEventFiles sets the number of rotation slots.
func (b *ConfigBuilder) WithNumEventFiles(n int) *ConfigBuilder {
	b.config.NumEventFiles = n

	return b
}

// WithFlushThreshold sets the queue length that triggers a flush.
func (b *ConfigBuilder) WithFlushThreshold(n int) *ConfigBuilder {
	b.config.FlushThreshold = n

	return b
}

// WithCaptureMode sets the capture granularity.
func (b *ConfigBuilder) WithCaptureMode(mode CaptureMode) *ConfigBuilder {
	b.config.CaptureMode = mode

	return b
}

// WithConstants sets the log header.
func (b *ConfigBuilder) WithConstants(constants any) *ConfigBuilder {
	b.config.Constants = constants

	return b
}

// WithRenderer sets the entry renderer.
func (b *ConfigBuilder) WithRenderer(renderer Renderer) *ConfigBuilder {
	b.config.Renderer = renderer

	return b
}

// WithFileMode sets the permissions of created files.
func (b *ConfigBuilder) WithFileMode(mode os.FileMode) *ConfigBuilder {
	b.config.FileMode = mode

	return b
}

// WithCompression gzips the final log at the given level once stopped.
// Level values:
// -1 = Default compression
// 1 = Best speed
// 9 = Best compression
// Example: builder.WithCompression(true, gzip.BestSpeed).
func (b *ConfigBuilder) WithCompression(enable bool, level int) *ConfigBuilder {
	b.config.Compress = enable
	b.config.CompressionLevel = level

	return b
}

// WithLogger sets the diagnostic logger.
func (b *ConfigBuilder) WithLogger(logger log.Logger) *ConfigBuilder {
	b.config.Logger = logger

	return b
}

// WithMetrics sets an additional metrics recorder.
func (b *ConfigBuilder) WithMetrics(recorder metrics.Recorder) *ConfigBuilder {
	b.config.Metrics = recorder

	return b
}

// Build returns a copy of the configuration. It is not validated.
func (b *ConfigBuilder) Build() *Config {
	config := b.config

	return &config
}
