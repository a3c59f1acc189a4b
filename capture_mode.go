package netlog

import (
	"strings"

	"github.com/hyp3rd/ewrap"
)

// CaptureMode is the granularity at which an observer records entries. Modes
// are ordered: an observer receives every entry whose Mode is at most its own.
type CaptureMode uint8

const (
	// CaptureModeDefault records entries without sensitive payloads.
	CaptureModeDefault CaptureMode = iota
	// CaptureModeIncludeSensitive also records entries carrying sensitive data
	// such as cookies or credentials.
	CaptureModeIncludeSensitive
	// CaptureModeEverything records every entry, including raw bytes.
	CaptureModeEverything
)

// String returns the name used in configuration files and in the constants block.
func (m CaptureMode) String() string {
	switch m {
	case CaptureModeDefault:
		return "default"
	case CaptureModeIncludeSensitive:
		return "include_sensitive"
	case CaptureModeEverything:
		return "everything"
	default:
		return "unknown"
	}
}

// IsValid reports whether the mode value is recognised.
func (m CaptureMode) IsValid() bool {
	return m <= CaptureModeEverything
}

// Admits reports whether an observer capturing at m receives an entry
// requiring mode.
func (m CaptureMode) Admits(mode CaptureMode) bool {
	return mode <= m
}

// ParseCaptureMode parses a mode name, case-insensitively. The empty string is
// the default mode.
func ParseCaptureMode(name string) (CaptureMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return CaptureModeDefault, nil
	case "include_sensitive", "sensitive":
		return CaptureModeIncludeSensitive, nil
	case "everything", "all":
		return CaptureModeEverything, nil
	default:
		return CaptureModeDefault, ewrap.Wrap(ErrInvalidCaptureMode, "parsing capture mode").
			WithMetadata("capture_mode", name)
	}
}
