// Package remuxer contains the logic that merges tracks of multiple files into a single file.
package remuxer

import (
	"fmt"

	"github.com/bluenviron/mp4remuxer/internal/container"
	"github.com/bluenviron/mp4remuxer/internal/logger"
	"github.com/bluenviron/mp4remuxer/internal/trackoption"
)

const (
	defaultProgressPeriod = 256
)

// Source is an input file.
type Source interface {
	MovieParams() container.MovieParams
	Tracks() []uint32
	TrackParams(trackID uint32) (container.TrackParams, error)
	MediaParams(trackID uint32) (container.MediaParams, error)
	CodecConfig(trackID uint32) (container.CodecConfig, error)
	TimelineMap(trackID uint32) (container.TimelineMap, error)
	ExportMetadata() container.Metadata
	BuildTimeline(trackID uint32) error
	LastSampleDelta(trackID uint32) (uint32, error)
	DTS(trackID uint32, sampleNumber uint32) (uint64, error)
	Sample(trackID uint32, sampleNumber uint32) (*container.Sample, error)
}

// Sink is the output file.
type Sink interface {
	SetMovieParams(params container.MovieParams) error
	ImportMetadata(m container.Metadata) error
	CreateTrack(handler container.HandlerType) (uint32, error)
	SetTrackParams(trackID uint32, params container.TrackParams) error
	SetMediaParams(trackID uint32, params container.MediaParams) error
	SetCodecConfig(trackID uint32, cfg container.CodecConfig) error
	AppendSample(trackID uint32, sa *container.Sample) error
	Flush(trackID uint32, lastSampleDelta uint32) error
	SetTimelineMap(trackID uint32, tm container.TimelineMap) error
	Finalize(progress container.ProgressFunc) error
}

// Remuxer merges all tracks of Sources into Sink.
type Remuxer struct {
	Sources []Source
	// track options of every source, indexed like Sources. Can be nil.
	TrackOptions   []map[int]trackoption.Override
	Sink           Sink
	ProgressPeriod int
	Parent         logger.Writer

	mapper *trackMapper
}

// Log implements logger.Writer.
func (r *Remuxer) Log(level logger.Level, format string, args ...interface{}) {
	r.Parent.Log(level, "[remuxer] "+format, args...)
}

// Run performs the whole operation.
// Sources and Sink are not closed.
func (r *Remuxer) Run() error {
	if len(r.Sources) == 0 {
		return NewError(ErrorKindConfiguration, "no input specified")
	}

	if r.TrackOptions != nil && len(r.TrackOptions) != len(r.Sources) {
		return NewError(ErrorKindConfiguration, "track options of %d sources provided, expected %d",
			len(r.TrackOptions), len(r.Sources))
	}

	if r.ProgressPeriod == 0 {
		r.ProgressPeriod = defaultProgressPeriod
	}

	r.mapper = &trackMapper{
		sources:   r.Sources,
		overrides: r.TrackOptions,
		sink:      r.Sink,
	}

	err := r.mapper.prepare()
	if err != nil {
		return err
	}

	movies := make([]container.MovieParams, len(r.Sources))
	for i, src := range r.Sources {
		movies[i] = src.MovieParams()
	}

	movie := SelectBrands(movies)
	r.Log(logger.Debug, "major brand: %s, minor version: %d", movie.MajorBrand, movie.MinorVersion)

	err = r.Sink.SetMovieParams(movie)
	if err != nil {
		return NewError(ErrorKindTransfer, "unable to set movie parameters: %w", err)
	}

	for i, src := range r.Sources {
		err = r.Sink.ImportMetadata(src.ExportMetadata())
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to import metadata of source %d: %w", i+1, err)
		}
	}

	err = r.mapper.create()
	if err != nil {
		return err
	}

	r.Log(logger.Info, "remuxing %d %s from %d %s",
		len(r.mapper.tracks), plural(len(r.mapper.tracks), "track"),
		len(r.Sources), plural(len(r.Sources), "source"))

	s := &scheduler{
		sink:           r.Sink,
		progressPeriod: r.ProgressPeriod,
		parent:         r,
	}
	s.initialize(r.mapper.tracks)

	err = s.run()
	if err != nil {
		return err
	}

	r.Log(logger.Info, "imported %d samples (%d bytes)", s.transferred, s.transferredBytes)

	f := &finalizer{
		tracks: r.mapper.tracks,
		sink:   r.Sink,
		parent: r,
	}

	err = f.run()
	if err != nil {
		return err
	}

	r.Log(logger.Info, "remuxing completed")
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return fmt.Sprintf("%ss", word)
}
