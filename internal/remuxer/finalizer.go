package remuxer

import (
	"github.com/bluenviron/mp4remuxer/internal/logger"
)

type finalizer struct {
	tracks []*mappedTrack
	sink   Sink
	parent logger.Writer

	lastPercent int
}

func (f *finalizer) run() error {
	for _, t := range f.tracks {
		err := f.sink.Flush(t.outTrackID, t.lastDelta)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to flush track %d: %w", t.outTrackID, err)
		}
	}

	for _, t := range f.tracks {
		tm, err := t.source.TimelineMap(t.inTrackID)
		if err != nil {
			return NewError(ErrorKindSource, "source %d, track %d: %w", t.key.Source, t.key.Track, err)
		}

		err = f.sink.SetTimelineMap(t.outTrackID, tm)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to copy timeline map of track %d: %w", t.outTrackID, err)
		}
	}

	f.lastPercent = -1

	err := f.sink.Finalize(f.onProgress)
	if err != nil {
		return NewError(ErrorKindTransfer, "unable to finalize: %w", err)
	}

	return nil
}

func (f *finalizer) onProgress(written uint64, total uint64) {
	if total == 0 {
		return
	}

	percent := float64(written) / float64(total) * 100
	if int(percent) == f.lastPercent {
		return
	}
	f.lastPercent = int(percent)

	f.parent.Log(logger.Info, "finalizing: %.2f%%", percent)
}
