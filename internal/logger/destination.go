package logger

import "time"

// Destination is a log destination.
type Destination int

const (
	// DestinationStderr writes logs to the standard error, the diagnostic stream.
	DestinationStderr Destination = iota

	// DestinationFile writes logs to a file.
	DestinationFile
)

type destination interface {
	log(time.Time, Level, string, ...interface{})
	close()
}
