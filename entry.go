package netlog

import (
	"encoding/json"
	"time"

	"github.com/hyp3rd/ewrap"
)

// Phase marks where an entry sits in the lifetime of its source.
type Phase uint8

const (
	// PhaseNone is a point-in-time entry.
	PhaseNone Phase = iota
	// PhaseBegin opens an operation.
	PhaseBegin
	// PhaseEnd closes the operation opened by the matching PhaseBegin.
	PhaseEnd
)

// String returns the phase name written to the log.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "PHASE_NONE"
	case PhaseBegin:
		return "PHASE_BEGIN"
	case PhaseEnd:
		return "PHASE_END"
	default:
		return "PHASE_UNKNOWN"
	}
}

// EntrySource identifies the object an entry belongs to.
type EntrySource struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
}

// Entry is one event published on a Source.
type Entry struct {
	// Type names the event, e.g. "REQUEST_ALIVE".
	Type string
	// Time is when the event happened. The zero value is replaced by the time
	// the entry reaches the bus.
	Time time.Time
	// Source is the object the event belongs to.
	Source EntrySource
	// Phase tells begin and end entries apart.
	Phase Phase
	// Params carries the event payload. It must be encodable by the renderer.
	Params any
	// Mode is the minimum capture mode an observer needs to receive the entry.
	Mode CaptureMode
}

// Renderer turns an entry into the text stored in the events array. A render
// error drops the entry.
type Renderer interface {
	Render(entry Entry) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(entry Entry) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(entry Entry) ([]byte, error) {
	return f(entry)
}

// JSONRenderer renders entries as single-line JSON objects. Times are written
// as milliseconds since the Unix epoch, matching the timeTickOffset constant.
type JSONRenderer struct{}

type renderedEntry struct {
	Type   string      `json:"type"`
	Time   int64       `json:"time"`
	Source EntrySource `json:"source"`
	Phase  string      `json:"phase"`
	Params any         `json:"params,omitempty"`
}

// Render encodes entry.
func (JSONRenderer) Render(entry Entry) ([]byte, error) {
	out, err := json.Marshal(renderedEntry{
		Type:   entry.Type,
		Time:   entry.Time.UnixMilli(),
		Source: entry.Source,
		Phase:  entry.Phase.String(),
		Params: entry.Params,
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "rendering netlog entry").
			WithMetadata("type", entry.Type)
	}

	return out, nil
}
