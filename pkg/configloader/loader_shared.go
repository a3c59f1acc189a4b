package configloader

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog"
)

type rawConfig struct {
	Path             string `mapstructure:"path" yaml:"path"`
	MaxTotalSize     string `mapstructure:"max_total_size" yaml:"max_total_size"`
	NumEventFiles    *int   `mapstructure:"num_event_files" yaml:"num_event_files"`
	FlushThreshold   *int   `mapstructure:"flush_threshold" yaml:"flush_threshold"`
	CaptureMode      string `mapstructure:"capture_mode" yaml:"capture_mode"`
	FileMode         string `mapstructure:"file_mode" yaml:"file_mode"`
	Compress         *bool  `mapstructure:"compress" yaml:"compress"`
	CompressionLevel *int   `mapstructure:"compression_level" yaml:"compression_level"`
}

func applyRaw(raw rawConfig) (*netlog.Config, error) {
	path, err := expandPath(raw.Path)
	if err != nil {
		return nil, err
	}

	cfg := netlog.DefaultConfig(path)

	cfg.MaxTotalSize, err = parseTotalSize(raw.MaxTotalSize)
	if err != nil {
		return nil, err
	}

	if raw.NumEventFiles != nil {
		cfg.NumEventFiles = *raw.NumEventFiles
	}

	if raw.FlushThreshold != nil {
		cfg.FlushThreshold = *raw.FlushThreshold
	}

	if raw.CaptureMode != "" {
		mode, err := netlog.ParseCaptureMode(raw.CaptureMode)
		if err != nil {
			return nil, err
		}

		cfg.CaptureMode = mode
	}

	if raw.FileMode != "" {
		mode, err := parseFileMode(raw.FileMode)
		if err != nil {
			return nil, err
		}

		cfg.FileMode = mode
	}

	if raw.Compress != nil {
		cfg.Compress = *raw.Compress
	}

	if raw.CompressionLevel != nil {
		cfg.CompressionLevel = *raw.CompressionLevel
	}

	return &cfg, nil
}

// parseTotalSize accepts a byte count or a human size such as "40MiB".
// Empty, zero, negative and "unbounded" values select unbounded mode.
func parseTotalSize(value string) (int64, error) {
	value = strings.TrimSpace(value)

	switch strings.ToLower(value) {
	case "", "unbounded", "unlimited":
		return netlog.NoLimit, nil
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n <= 0 {
			return netlog.NoLimit, nil
		}

		return n, nil
	}

	size, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, ewrap.Wrap(err, "invalid max total size").
			WithMetadata("max_total_size", value)
	}

	if size > math.MaxInt64 {
		return 0, ewrap.New("max total size overflows").
			WithMetadata("max_total_size", value)
	}

	if size == 0 {
		return netlog.NoLimit, nil
	}

	return int64(size), nil
}

// expandPath resolves a leading "~" and environment references.
func expandPath(value string) (string, error) {
	value = os.ExpandEnv(strings.TrimSpace(value))

	if value != "~" && !strings.HasPrefix(value, "~/") {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", ewrap.Wrap(err, "expanding home directory").
			WithMetadata("path", value)
	}

	return filepath.Join(home, strings.TrimPrefix(value, "~")), nil
}

func parseFileMode(value string) (os.FileMode, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0o")

	mode, err := strconv.ParseUint(value, 8, 32)
	if err != nil || mode > uint64(os.ModePerm) {
		return 0, ewrap.New("invalid file mode").
			WithMetadata("file_mode", value)
	}

	return os.FileMode(mode), nil
}

func allKeys() []string {
	return []string{
		"path",
		"max_total_size",
		"num_event_files",
		"flush_threshold",
		"capture_mode",
		"file_mode",
		"compress",
		"compression_level",
	}
}
