// Package container contains a reader and a writer of ISO base media files (MP4, MOV).
package container

import (
	"errors"
)

// ErrSampleNotFound is returned when a sample does not exist in a track timeline.
var ErrSampleNotFound = errors.New("sample not found")

// HandlerType is the media handler of a track.
type HandlerType [4]byte

// String implements fmt.Stringer.
func (h HandlerType) String() string {
	return string(h[:])
}

// handler types.
var (
	HandlerVideo    = HandlerType{'v', 'i', 'd', 'e'}
	HandlerAudio    = HandlerType{'s', 'o', 'u', 'n'}
	HandlerHint     = HandlerType{'h', 'i', 'n', 't'}
	HandlerText     = HandlerType{'t', 'e', 'x', 't'}
	HandlerSubtitle = HandlerType{'s', 'b', 't', 'l'}
)

// Brand is a file type brand.
type Brand [4]byte

// String implements fmt.Stringer.
func (b Brand) String() string {
	return string(b[:])
}

// MovieParams are the movie-level parameters.
type MovieParams struct {
	MajorBrand       Brand
	MinorVersion     uint32
	CompatibleBrands []Brand
	Timescale        uint32
}

// TrackParams are the track header parameters.
type TrackParams struct {
	TrackID        uint32
	Flags          uint32
	Layer          int16
	AlternateGroup int16
	Volume         int16
	Matrix         [9]int32
	Width          uint32 // 16.16 fixed point
	Height         uint32 // 16.16 fixed point
}

// MediaParams are the media-level parameters.
type MediaParams struct {
	HandlerType HandlerType
	HandlerName string
	Timescale   uint32
	Language    Language

	// media information header (vmhd, smhd, ...), copied as is.
	MediaHeader []byte
}

// CodecConfig is the decoder configuration of a track.
// It contains the raw sample description box (stsd).
type CodecConfig struct {
	SampleDescription []byte
}

// EditEntry is an entry of a timeline map.
type EditEntry struct {
	SegmentDuration uint64 // in movie timescale
	MediaTime       int64  // in media timescale, -1 for an empty edit
	MediaRate       int32  // 16.16 fixed point
}

// TimelineMap is an edit list.
type TimelineMap struct {
	MovieTimescale uint32
	Entries        []EditEntry
}

// Sample is a timed unit of a track.
type Sample struct {
	DTS                    uint64
	CTSOffset              int64
	IsSync                 bool
	SampleDescriptionIndex uint32
	Data                   []byte
}

// Length returns the size of the sample payload.
func (s *Sample) Length() int {
	return len(s.Data)
}

// Metadata is an iTunes-style metadata list.
// It contains the raw items of the ilst box.
type Metadata struct {
	Items []byte
}

// ProgressFunc is called while finalizing a file.
type ProgressFunc func(written uint64, total uint64)
