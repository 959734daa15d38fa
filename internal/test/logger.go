package test

import (
	"fmt"

	"github.com/bluenviron/mp4remuxer/internal/logger"
)

type nilLogger struct{}

func (nilLogger) Log(logger.Level, string, ...interface{}) {}

// NilLogger discards everything.
var NilLogger logger.Writer = nilLogger{}

// LogRecorder is a logger that stores formatted lines.
type LogRecorder struct {
	Lines []string
}

// Log implements logger.Writer.
func (r *LogRecorder) Log(_ logger.Level, format string, args ...interface{}) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}
