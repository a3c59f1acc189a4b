package netlog

import (
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/hyp3rd/netlog/internal/constants"
)

// DefaultConstants returns the header written when a configuration provides
// none. It identifies the writer and the session so that logs captured by
// different processes can be told apart.
func DefaultConstants(mode CaptureMode) map[string]any {
	return map[string]any{
		"logFormatVersion": constants.LogFormatVersion,
		"clientInfo": map[string]any{
			"name":    constants.ClientName,
			"version": constants.ClientVersion,
			"os":      runtime.GOOS,
			"arch":    runtime.GOARCH,
			"go":      runtime.Version(),
		},
		"sessionId":      newSessionID(),
		"timeTickOffset": time.Now().UnixMilli(),
		"logCaptureMode": mode.String(),
	}
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
