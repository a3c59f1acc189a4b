package filewriter

import (
	"path/filepath"
	"strconv"

	"github.com/hyp3rd/netlog/internal/constants"
)

// InprogressDir returns the staging directory used by bounded mode for the
// final log at path.
func InprogressDir(path string) string {
	return path + constants.InprogressSuffix
}

// EventFilePath returns the path of the numbered event file having index.
func EventFilePath(path string, index int) string {
	return filepath.Join(InprogressDir(path), constants.EventFilePrefix+strconv.Itoa(index)+constants.EventFileExt)
}

// ConstantsFilePath returns the path of the staged header.
func ConstantsFilePath(path string) string {
	return filepath.Join(InprogressDir(path), constants.ConstantsFileName)
}

// ClosingFilePath returns the path of the staged footer.
func ClosingFilePath(path string) string {
	return filepath.Join(InprogressDir(path), constants.ClosingFileName)
}

// RingPositionFilePath returns the path of the ring position marker.
func RingPositionFilePath(path string) string {
	return filepath.Join(InprogressDir(path), constants.RingPositionFileName)
}

// fileNumberToIndex maps a file number (starting at 1) to its slot.
func fileNumberToIndex(fileNumber, numEventFiles int) int {
	return (fileNumber - 1) % numEventFiles
}
