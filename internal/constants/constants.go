// Package constants provides the fixed values shared by the netlog packages:
// on-disk file names of the bounded layout, the JSON framing tokens of the log
// artifact and the defaults used when a configuration leaves a field unset.
package constants

import "time"

const (
	// NonProductionEnvironment is the environment name for non-production environments.
	NonProductionEnvironment = "development"
	// DefaultTimeout bounds how long the CLI waits for a session to finish stopping.
	DefaultTimeout = 30 * time.Second

	// DefaultFlushThreshold is the queue length at which a flush is scheduled.
	DefaultFlushThreshold = 15
	// DefaultNumEventFiles is the number of rotation slots used in bounded mode.
	DefaultNumEventFiles = 10
	// StitchBufferSize is the size of the buffer used to copy staged files into the final log.
	StitchBufferSize = 1 << 16
	// LogFilePermissions are the default permissions for files written by the writer.
	LogFilePermissions = 0o600
	// LogDirPermissions are the permissions for the staging directory.
	LogDirPermissions = 0o700
	// LogFormatVersion is written into the default constants block.
	LogFormatVersion = 1
	// ClientName identifies the writer in the default constants block.
	ClientName = "netlog"
	// ClientVersion is reported next to ClientName.
	ClientVersion = "0.1.0"
)

const (
	// InprogressSuffix is appended to the final log path to name the staging directory.
	InprogressSuffix = ".inprogress"
	// ConstantsFileName holds the header while a bounded session runs.
	ConstantsFileName = "constants.json"
	// ClosingFileName holds the footer once a bounded session stops.
	ClosingFileName = "end_netlog.json"
	// RingPositionFileName records the newest file number and the slot count.
	RingPositionFileName = "ring_position"
	// EventFilePrefix prefixes every numbered event file.
	EventFilePrefix = "event_file_"
	// EventFileExt is the extension of every numbered event file.
	EventFileExt = ".json"
	// CompressedExt is appended to the final log path when compression is enabled.
	CompressedExt = ".gz"
)

// Framing tokens of the log artifact.
const (
	// ConstantsOpen starts the document and the constants member.
	ConstantsOpen = "{\"constants\":"
	// EventsOpen closes the constants member and opens the events array.
	EventsOpen = ",\n\"events\": [\n"
	// EventSeparator terminates every event line.
	EventSeparator = ",\n"
	// EventsClose closes the events array.
	EventsClose = "]"
	// PolledDataOpen starts the optional polledData member.
	PolledDataOpen = ",\n\"polledData\": "
	// PolledDataClose terminates the polledData member.
	PolledDataClose = "\n"
	// DocumentClose closes the document.
	DocumentClose = "}\n"
	// InprogressPlaceholder is left in the final file while bounded logging runs.
	InprogressPlaceholder = "Log data is being written to the %s directory. " +
		"If logging did not stop cleanly, run `netlogctl recover %s` to assemble it.\n"
)
