package filewriter

import (
	"encoding/json"
	"os"

	"github.com/hyp3rd/ewrap"
)

// ringPosition is persisted next to the event files on every rotation so that
// an abandoned staging directory can be stitched in rotation order.
type ringPosition struct {
	FileNumber    int `json:"file_number"`
	NumEventFiles int `json:"num_event_files"`
}

func (p ringPosition) valid() bool {
	return p.FileNumber > 0 && p.NumEventFiles > 0
}

// firstFileNumber is the oldest file number still stored in the ring.
func (p ringPosition) firstFileNumber() int {
	if p.FileNumber > p.NumEventFiles {
		return p.FileNumber - p.NumEventFiles + 1
	}

	return 1
}

// writeRingPosition replaces the marker through a rename, so a reader sees
// either the previous or the new position.
func writeRingPosition(path string, pos ringPosition, mode os.FileMode) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return ewrap.Wrap(err, "encoding ring position")
	}

	target := RingPositionFilePath(path)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, data, mode)
	if err != nil {
		return ewrap.Wrap(err, "writing ring position").
			WithMetadata("path", tmp)
	}

	err = os.Rename(tmp, target)
	if err != nil {
		_ = os.Remove(tmp)

		return ewrap.Wrap(err, "replacing ring position").
			WithMetadata("path", target)
	}

	return nil
}

// readRingPosition returns the persisted position, false when the marker is
// missing or unreadable.
func readRingPosition(path string) (ringPosition, bool) {
	//nolint:gosec // G304: derived from the validated log path.
	data, err := os.ReadFile(RingPositionFilePath(path))
	if err != nil {
		return ringPosition{}, false
	}

	var pos ringPosition

	err = json.Unmarshal(data, &pos)
	if err != nil || !pos.valid() {
		return ringPosition{}, false
	}

	return pos, true
}
