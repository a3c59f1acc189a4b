// Package filewriter persists drained events to disk for a netlog session.
//
// A Writer runs in one of two modes. In unbounded mode every event is streamed
// into the final log file. In bounded mode events go to a ring of numbered
// files inside "<path>.inprogress"; once a file reaches its size cap the next
// slot is opened (truncating whatever it held), and Stop stitches the header,
// the surviving event files in rotation order and the footer back into the
// final log file.
//
// A Writer is not safe for concurrent use. All of its methods are meant to run
// on the session's single task runner goroutine.
package filewriter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog/internal/constants"
	"github.com/hyp3rd/netlog/internal/queue"
	"github.com/hyp3rd/netlog/internal/utils"
	"github.com/hyp3rd/netlog/pkg/log"
	"github.com/hyp3rd/netlog/pkg/metrics"
)

// NoLimit disables the per-file size cap and selects unbounded mode.
const NoLimit = queue.NoLimit

// State is the lifecycle position of a Writer.
type State uint8

const (
	// StateUninitialized is the state before Initialize.
	StateUninitialized State = iota
	// StateInitialized accepts flushes.
	StateInitialized
	// StateStopped means the final log has been written and closed.
	StateStopped
	// StateDeleted means every file of the session has been removed.
	StateDeleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStopped:
		return "stopped"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Options configures a Writer.
type Options struct {
	// Path is the final log file.
	Path string
	// MaxEventFileSize caps each numbered event file. NoLimit selects unbounded mode.
	MaxEventFileSize int64
	// NumEventFiles is the number of rotation slots in bounded mode.
	NumEventFiles int
	// FileMode sets the permissions of created files.
	FileMode os.FileMode
	// Compress gzips the final log to "<path>.gz" once stopped.
	Compress bool
	// CompressionLevel is the gzip level used when Compress is set.
	CompressionLevel int
	// Logger receives diagnostics about degraded file operations.
	Logger log.Logger
	// Recorder receives write and rotation counts.
	Recorder metrics.Recorder
}

// Writer owns every file handle of a session.
type Writer struct {
	path             string
	maxEventFileSize int64
	numEventFiles    int
	fileMode         os.FileMode
	compress         bool
	compressionLevel int
	logger           log.Logger
	recorder         metrics.Recorder

	state State

	// finalFile stays open for the whole session, even in bounded mode.
	finalFile *os.File

	// currentFile is nil before the first rotation or after a failed open.
	currentFile       *os.File
	currentFileSize   int64
	currentFileNumber int

	wroteEventBytes bool

	local   []queue.Event
	lineBuf []byte
}

// New validates opts and returns an uninitialized Writer.
func New(opts Options) (*Writer, error) {
	path, err := utils.ValidateLogPath(opts.Path)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid netlog path")
	}

	if opts.MaxEventFileSize <= 0 {
		opts.MaxEventFileSize = NoLimit
	}

	if opts.MaxEventFileSize != NoLimit && opts.NumEventFiles <= 0 {
		return nil, ewrap.New("bounded mode requires at least one event file").
			WithMetadata("num_event_files", opts.NumEventFiles)
	}

	if opts.FileMode == 0 {
		opts.FileMode = constants.LogFilePermissions
	}

	if opts.Logger == nil {
		opts.Logger = log.NewNoop()
	}

	if opts.Recorder == nil {
		opts.Recorder = metrics.NewNoop()
	}

	return &Writer{
		path:             path,
		maxEventFileSize: opts.MaxEventFileSize,
		numEventFiles:    opts.NumEventFiles,
		fileMode:         opts.FileMode,
		compress:         opts.Compress,
		compressionLevel: opts.CompressionLevel,
		logger:           opts.Logger.WithField("netlog_path", path),
		recorder:         opts.Recorder,
	}, nil
}

// Path returns the final log path.
func (w *Writer) Path() string {
	return w.path
}

// IsBounded reports whether events are rotated across numbered files.
func (w *Writer) IsBounded() bool {
	return w.maxEventFileSize != NoLimit
}

// State returns the lifecycle state.
func (w *Writer) State() State {
	return w.state
}

// CurrentFileNumber returns the number of the open event file, 0 before the first rotation.
func (w *Writer) CurrentFileNumber() int {
	return w.currentFileNumber
}

// WroteEventBytes reports whether any event bytes reached disk.
func (w *Writer) WroteEventBytes() bool {
	return w.wroteEventBytes
}

// Initialize opens the final log file and writes the constants header. In
// bounded mode the header goes to the staging directory and the final file
// only receives a placeholder pointing there.
func (w *Writer) Initialize(constantsValue any) {
	if w.state != StateUninitialized {
		w.logger.WithField("state", w.state.String()).Warn("netlog writer already initialized")

		return
	}

	w.state = StateInitialized
	w.finalFile = w.openForWrite(w.path)

	if !w.IsBounded() {
		w.writeConstants(constantsValue, w.finalFile)

		return
	}

	w.createInprogressDirectory()

	constantsFile := w.openForWrite(ConstantsFilePath(w.path))
	w.writeConstants(constantsValue, constantsFile)
	w.closeFile(constantsFile)
}

// Flush drains q and writes every event followed by the separator.
func (w *Writer) Flush(q *queue.WriteQueue) {
	w.local = q.DrainInto(w.local)

	if w.state != StateInitialized {
		if len(w.local) > 0 {
			w.logger.WithField("state", w.state.String()).
				WithField("events", len(w.local)).
				Warn("discarding events flushed outside an active session")
		}

		w.releaseLocal()

		return
	}

	var written int64

	for _, event := range w.local {
		var out *os.File

		if w.IsBounded() {
			if w.currentFileNumber == 0 || w.currentFileSize >= w.maxEventFileSize {
				w.incrementCurrentEventFile()
			}

			out = w.currentFile
		} else {
			out = w.finalFile
		}

		w.lineBuf = append(w.lineBuf[:0], event...)
		w.lineBuf = append(w.lineBuf, constants.EventSeparator...)

		n := writeToFile(out, w.lineBuf)

		w.wroteEventBytes = w.wroteEventBytes || n > 0

		if w.IsBounded() {
			w.currentFileSize += n
		}

		written += n
	}

	w.recorder.Flushed(len(w.local))
	w.recorder.BytesWritten(written)

	w.releaseLocal()
}

// Stop closes the events array, writes polledData (omitted when nil or not
// encodable) and closes the document. In bounded mode it then stitches the
// staged files into the final log and removes the staging directory.
func (w *Writer) Stop(polledData any) {
	if w.state != StateInitialized {
		w.logger.WithField("state", w.state.String()).Warn("netlog writer stopped outside an active session")

		return
	}

	if w.IsBounded() {
		closingFile := w.openForWrite(ClosingFilePath(w.path))
		w.writePolledData(polledData, closingFile)
		w.closeFile(closingFile)

		w.stitchFinalLogFile()
	} else {
		w.rewindIfWroteEventBytes(w.finalFile, w.wroteEventBytes)
		w.writePolledData(polledData, w.finalFile)
	}

	hadFinal := w.finalFile != nil

	w.closeFile(w.finalFile)
	w.finalFile = nil
	w.state = StateStopped

	if w.compress && hadFinal {
		w.compressFinal()
	}
}

// FlushThenStop drains q one last time and stops.
func (w *Writer) FlushThenStop(q *queue.WriteQueue, polledData any) {
	w.Flush(q)
	w.Stop(polledData)
}

// DeleteAllFiles releases every handle and removes the final log and the
// staging directory. Calling it again is a no-op.
func (w *Writer) DeleteAllFiles() {
	w.closeFile(w.finalFile)
	w.finalFile = nil

	w.closeFile(w.currentFile)
	w.currentFile = nil

	if w.IsBounded() {
		err := os.RemoveAll(InprogressDir(w.path))
		if err != nil {
			w.logger.WithError(err).Warn("failed removing netlog staging directory")
		}
	}

	err := os.Remove(w.path)
	if err != nil && !os.IsNotExist(err) {
		w.logger.WithError(err).Warn("failed removing netlog file")
	}

	w.state = StateDeleted
}

// incrementCurrentEventFile moves to the next file number and opens its slot,
// truncating any older content stored there.
func (w *Writer) incrementCurrentEventFile() {
	w.closeFile(w.currentFile)

	w.currentFileNumber++
	w.currentFile = w.openForWrite(EventFilePath(w.path, fileNumberToIndex(w.currentFileNumber, w.numEventFiles)))
	w.currentFileSize = 0

	// The slot is empty until the next write, so the marker never points past
	// data that was not yet written.
	err := writeRingPosition(w.path, ringPosition{
		FileNumber:    w.currentFileNumber,
		NumEventFiles: w.numEventFiles,
	}, w.fileMode)
	if err != nil {
		w.logger.WithError(err).Debug("failed recording netlog ring position")
	}

	w.recorder.FileRotated()
}

// createInprogressDirectory creates the staging directory and leaves a
// placeholder in the final file for anyone opening it before Stop.
func (w *Writer) createInprogressDirectory() {
	// The directory is a sibling of the final file; if that could not be
	// opened the directory would not be usable either.
	if w.finalFile == nil {
		return
	}

	dir := InprogressDir(w.path)

	err := os.MkdirAll(dir, constants.LogDirPermissions)
	if err != nil {
		w.logger.WithError(err).WithField("path", dir).Warn("failed creating netlog staging directory")

		return
	}

	writeToFile(w.finalFile, fmt.Appendf(nil, constants.InprogressPlaceholder, filepath.Base(dir), w.path))

	err = w.finalFile.Sync()
	if err != nil {
		w.logger.WithError(err).Debug("failed syncing netlog placeholder")
	}
}

// stitchFinalLogFile assembles the final log from the staged files.
func (w *Writer) stitchFinalLogFile() {
	w.closeFile(w.currentFile)
	w.currentFile = nil

	// Reopen to truncate the placeholder.
	w.closeFile(w.finalFile)
	w.finalFile = w.openForWrite(w.path)

	buf := make([]byte, constants.StitchBufferSize)

	w.appendThenDelete(ConstantsFilePath(w.path), buf)

	// File numbers start at 1. Only the last numEventFiles numbers survive.
	begin := 1
	if w.currentFileNumber > w.numEventFiles {
		begin = w.currentFileNumber - w.numEventFiles + 1
	}

	var eventBytes int64

	for number := begin; number <= w.currentFileNumber; number++ {
		eventBytes += w.appendThenDelete(EventFilePath(w.path, fileNumberToIndex(number, w.numEventFiles)), buf)
	}

	w.rewindIfWroteEventBytes(w.finalFile, w.wroteEventBytes && eventBytes > 0)

	w.appendThenDelete(ClosingFilePath(w.path), buf)

	err := os.RemoveAll(InprogressDir(w.path))
	if err != nil {
		w.logger.WithError(err).Warn("failed removing netlog staging directory")
	}
}

func (w *Writer) appendThenDelete(src string, buf []byte) int64 {
	var dst io.Writer
	if w.finalFile != nil {
		dst = w.finalFile
	}

	n, err := utils.AppendFileThenDelete(src, dst, buf)
	if err != nil {
		w.logger.WithError(err).Warn("failed stitching netlog file")
	}

	return n
}

// rewindIfWroteEventBytes drops the separator that follows the last event so
// the events array does not end with a comma.
func (w *Writer) rewindIfWroteEventBytes(file *os.File, wrote bool) {
	if file == nil || !wrote {
		return
	}

	err := trimTrailingSeparator(file)
	if err != nil {
		w.logger.WithError(err).Warn("failed trimming netlog event separator")
	}
}

func (w *Writer) writeConstants(constantsValue any, file *os.File) {
	encoded, err := json.Marshal(constantsValue)
	if err != nil {
		// Constants are produced by this module and are expected to encode.
		w.logger.WithError(err).Error("failed encoding netlog constants")

		encoded = []byte("{}")
	}

	writeToFile(file, []byte(constants.ConstantsOpen), encoded, []byte(constants.EventsOpen))
}

func (w *Writer) writePolledData(polledData any, file *os.File) {
	writeToFile(file, []byte(constants.EventsClose))

	if polledData != nil {
		encoded, err := json.Marshal(polledData)
		if err != nil {
			w.logger.WithError(err).Warn("omitting netlog polled data")
		} else if len(encoded) > 0 {
			writeToFile(file, []byte(constants.PolledDataOpen), encoded, []byte(constants.PolledDataClose))
		}
	}

	writeToFile(file, []byte(constants.DocumentClose))
}

func (w *Writer) compressFinal() {
	target := w.path + constants.CompressedExt

	err := utils.CompressFile(w.path, target, w.compressionLevel, w.fileMode)
	if err != nil {
		w.logger.WithError(err).Warn("failed compressing netlog file")
	}
}

// openForWrite creates or truncates path. Failures are logged and yield nil;
// writes to a nil handle are no-ops for the rest of the session.
func (w *Writer) openForWrite(path string) *os.File {
	//nolint:gosec // G304: path is the validated log path or derived from it.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.fileMode)
	if err != nil {
		w.recorder.FileOpenFailed()
		w.logger.WithError(err).WithField("path", path).Warn("failed opening netlog file")

		return nil
	}

	return file
}

func (w *Writer) closeFile(file *os.File) {
	if file == nil {
		return
	}

	err := file.Sync()
	if err != nil {
		w.logger.WithError(err).WithField("path", file.Name()).Debug("failed syncing netlog file")
	}

	err = file.Close()
	if err != nil {
		w.logger.WithError(err).WithField("path", file.Name()).Warn("failed closing netlog file")
	}
}

func (w *Writer) releaseLocal() {
	clear(w.local)
	w.local = w.local[:0]
}

// writeToFile writes every chunk to file and returns the number of bytes
// written. A nil file writes nothing.
func writeToFile(file *os.File, chunks ...[]byte) int64 {
	if file == nil {
		return 0
	}

	var written int64

	for _, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}

		n, _ := file.Write(chunk)
		written += int64(n)
	}

	return written
}

// trimTrailingSeparator removes the last len(EventSeparator) bytes of file and
// leaves the offset at the new end.
func trimTrailingSeparator(file *os.File) error {
	offset, err := file.Seek(-int64(len(constants.EventSeparator)), io.SeekEnd)
	if err != nil {
		return ewrap.Wrap(err, "seeking before trailing separator").
			WithMetadata("path", file.Name())
	}

	err = file.Truncate(offset)
	if err != nil {
		return ewrap.Wrap(err, "truncating trailing separator").
			WithMetadata("path", file.Name())
	}

	return nil
}
