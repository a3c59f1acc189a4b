package filewriter

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog/internal/constants"
	"github.com/hyp3rd/netlog/internal/utils"
)

// ErrNothingToRecover is returned when no staging directory exists for a path.
var ErrNothingToRecover = ewrap.New("no in-progress netlog directory found")

// RecoverResult describes a recovered log.
type RecoverResult struct {
	// Path is the assembled log file.
	Path string `json:"path"`
	// EventFiles is the number of numbered event files that were stitched.
	EventFiles int `json:"event_files"`
	// EventBytes is the number of event bytes copied, separators included.
	EventBytes int64 `json:"event_bytes"`
	// HadConstants reports whether the staged header was present.
	HadConstants bool `json:"had_constants"`
	// HadFooter reports whether the session had written its footer before dying.
	HadFooter bool `json:"had_footer"`
	// RingOrdered reports whether the persisted ring position ordered the event
	// files. Otherwise they were ordered by modification time.
	RingOrdered bool `json:"ring_ordered"`
	// DroppedBytes counts the bytes of a partially written last event that
	// were cut from the log.
	DroppedBytes int64 `json:"dropped_bytes"`
}

type stagedEventFile struct {
	path    string
	index   int
	modTime int64
}

// Recover assembles the final log at path from a staging directory left behind
// by a bounded session that never stopped. Event files are stitched in rotation
// order using the ring position recorded by the writer; without it they are
// ordered by modification time, oldest first. An event cut short by the crash
// is dropped, and a missing header or footer is replaced by an empty one,
// keeping the output a complete document.
func Recover(path string, mode os.FileMode) (RecoverResult, error) {
	path, err := utils.ValidateLogPath(path)
	if err != nil {
		return RecoverResult{}, ewrap.Wrap(err, "invalid netlog path")
	}

	dir := InprogressDir(path)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return RecoverResult{}, ErrNothingToRecover
	}

	if mode == 0 {
		mode = constants.LogFilePermissions
	}

	eventFiles, err := listEventFiles(dir)
	if err != nil {
		return RecoverResult{}, err
	}

	pos, ringOrdered := readRingPosition(path)
	if ringOrdered {
		eventFiles = orderByRing(eventFiles, pos)
	}

	//nolint:gosec // G304: path was validated above.
	final, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return RecoverResult{}, ewrap.Wrap(err, "opening recovered netlog file").
			WithMetadata("path", path)
	}

	result := RecoverResult{Path: path, EventFiles: len(eventFiles), RingOrdered: ringOrdered}
	buf := make([]byte, constants.StitchBufferSize)

	err = stitchRecovered(final, path, eventFiles, buf, &result)

	syncErr := final.Sync()
	closeErr := final.Close()

	if err == nil {
		err = syncErr
	}

	if err == nil {
		err = closeErr
	}

	if err != nil {
		return result, ewrap.Wrap(err, "recovering netlog file").
			WithMetadata("path", path)
	}

	err = os.RemoveAll(dir)
	if err != nil {
		return result, ewrap.Wrap(err, "removing staging directory").
			WithMetadata("path", dir)
	}

	return result, nil
}

func stitchRecovered(final *os.File, path string, eventFiles []stagedEventFile, buf []byte, result *RecoverResult) error {
	constantsPath := ConstantsFilePath(path)

	_, statErr := os.Stat(constantsPath)
	result.HadConstants = statErr == nil

	if result.HadConstants {
		_, err := utils.AppendFileThenDelete(constantsPath, final, buf)
		if err != nil {
			return err
		}
	} else {
		writeToFile(final, []byte(constants.ConstantsOpen+"{}"+constants.EventsOpen))
	}

	eventsStart, err := final.Seek(0, io.SeekCurrent)
	if err != nil {
		return ewrap.Wrap(err, "locating events array").
			WithMetadata("path", path)
	}

	for _, eventFile := range eventFiles {
		n, err := utils.AppendFileThenDelete(eventFile.path, final, buf)
		if err != nil {
			return err
		}

		result.EventBytes += n
	}

	if result.EventBytes > 0 {
		dropped, err := trimToLastSeparator(final, eventsStart, buf)
		if err != nil {
			return err
		}

		result.DroppedBytes = dropped
	}

	closingPath := ClosingFilePath(path)

	_, statErr = os.Stat(closingPath)
	result.HadFooter = statErr == nil

	if result.HadFooter {
		_, err := utils.AppendFileThenDelete(closingPath, final, buf)

		return err
	}

	writeToFile(final, []byte(constants.EventsClose+constants.DocumentClose))

	return nil
}

// orderByRing returns the event files from the oldest to the newest file
// number of pos. Slots outside the recorded ring are left out.
func orderByRing(files []stagedEventFile, pos ringPosition) []stagedEventFile {
	byIndex := make(map[int]stagedEventFile, len(files))
	for _, file := range files {
		byIndex[file.index] = file
	}

	ordered := make([]stagedEventFile, 0, len(files))

	for number := pos.firstFileNumber(); number <= pos.FileNumber; number++ {
		file, ok := byIndex[fileNumberToIndex(number, pos.NumEventFiles)]
		if ok {
			ordered = append(ordered, file)
		}
	}

	return ordered
}

// trimToLastSeparator truncates file at the last event separator found at or
// after floor. Whatever follows that separator is an event the crash cut
// short; it is dropped and its size returned. Without any separator every
// byte after floor is dropped.
func trimToLastSeparator(file *os.File, floor int64, buf []byte) (int64, error) {
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, ewrap.Wrap(err, "seeking to end of recovered log").
			WithMetadata("path", file.Name())
	}

	sep := []byte(constants.EventSeparator)
	cut := floor
	dropped := end - floor

	for hi := end; hi > floor; {
		lo := max(floor, hi-int64(len(buf)))
		chunk := buf[:hi-lo]

		_, err := file.ReadAt(chunk, lo)
		if err != nil {
			return 0, ewrap.Wrap(err, "reading recovered log").
				WithMetadata("path", file.Name())
		}

		if i := bytes.LastIndex(chunk, sep); i >= 0 {
			cut = lo + int64(i)
			dropped = end - cut - int64(len(sep))

			break
		}

		if lo == floor {
			break
		}

		// Overlap by one byte so a separator split across reads is found.
		hi = lo + int64(len(sep)) - 1
	}

	err = file.Truncate(cut)
	if err != nil {
		return 0, ewrap.Wrap(err, "truncating recovered log").
			WithMetadata("path", file.Name())
	}

	_, err = file.Seek(cut, io.SeekStart)
	if err != nil {
		return 0, ewrap.Wrap(err, "seeking in recovered log").
			WithMetadata("path", file.Name())
	}

	return dropped, nil
}

func listEventFiles(dir string) ([]stagedEventFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ewrap.Wrap(err, "reading staging directory").
			WithMetadata("path", dir)
	}

	files := make([]stagedEventFile, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, constants.EventFilePrefix) ||
			!strings.HasSuffix(name, constants.EventFileExt) {
			continue
		}

		index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, constants.EventFilePrefix), constants.EventFileExt))
		if err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, ewrap.Wrap(err, "reading event file info").
				WithMetadata("path", name)
		}

		files = append(files, stagedEventFile{
			path:    filepath.Join(dir, name),
			index:   index,
			modTime: info.ModTime().UnixNano(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime != files[j].modTime {
			return files[i].modTime < files[j].modTime
		}

		return files[i].index < files[j].index
	})

	return files, nil
}
