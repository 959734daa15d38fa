package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// destinationFile appends log lines to a file.
// Lines of consecutive runs are accumulated in the same file.
type destinationFile struct {
	f   *os.File
	buf bytes.Buffer
}

func newDestinationFile(fpath string) (destination, error) {
	err := os.MkdirAll(filepath.Dir(fpath), 0o755)
	if err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}

	f, err := os.OpenFile(fpath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	return &destinationFile{f: f}, nil
}

func (d *destinationFile) log(t time.Time, level Level, format string, args ...interface{}) {
	d.buf.Reset()
	writeTime(&d.buf, t, false)
	writeLevel(&d.buf, level, false)
	writeContent(&d.buf, format, args)
	d.f.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationFile) close() {
	d.f.Sync() //nolint:errcheck
	d.f.Close()
}
