package container

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

const (
	defaultMovieTimescale = 1000
	mdatHeaderSize        = 16
)

// OutputConf is the configuration of an Output.
type OutputConf struct {
	// maximum duration of a chunk.
	ChunkDuration time.Duration

	// maximum size of a chunk.
	ChunkSize uint64

	// whether to move the movie header in front of media data.
	MoveHeaderToFront bool

	// size of the buffer used to move media data.
	FinalizeBufferSize int
}

type outputSample struct {
	dts                    uint64
	ctsOffset              int64
	size                   uint32
	isSync                 bool
	sampleDescriptionIndex uint32
}

type outputChunk struct {
	offset                 uint64
	sampleCount            uint32
	sampleDescriptionIndex uint32
}

type outputTrack struct {
	trackParams TrackParams
	mediaParams MediaParams
	codecConfig CodecConfig
	timelineMap *TimelineMap
	lastDelta   uint32

	samples  []outputSample
	chunks   []outputChunk
	pool     []*Sample
	poolSize uint64
}

func (t *outputTrack) poolDuration(dts uint64) time.Duration {
	if len(t.pool) == 0 || t.mediaParams.Timescale == 0 {
		return 0
	}
	return durationMp4ToGo(dts-t.pool[0].DTS, t.mediaParams.Timescale)
}

func durationMp4ToGo(v uint64, timeScale uint32) time.Duration {
	timeScale64 := uint64(timeScale)
	secs := v / timeScale64
	dec := v % timeScale64
	return time.Duration(secs)*time.Second + time.Duration(dec)*time.Second/time.Duration(timeScale64)
}

// Output is a file opened for writing.
type Output struct {
	conf OutputConf

	f             *os.File
	movie         MovieParams
	metadata      []byte
	tracks        []*outputTrack
	headerWritten bool
	mdatStart     int64
	pos           int64
	finalized     bool
}

// CreateOutput creates a file for writing.
func CreateOutput(path string, conf OutputConf) (*Output, error) {
	if path == "-" {
		return nil, fmt.Errorf("standard output is not supported")
	}

	if conf.ChunkDuration <= 0 {
		conf.ChunkDuration = 500 * time.Millisecond
	}
	if conf.ChunkSize == 0 {
		conf.ChunkSize = 4 * 1024 * 1024
	}
	if conf.FinalizeBufferSize <= 0 {
		conf.FinalizeBufferSize = 4 * 1024 * 1024
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	return &Output{
		conf: conf,
		f:    f,
		movie: MovieParams{
			Timescale: defaultMovieTimescale,
		},
	}, nil
}

// Close closes the Output. It can be called multiple times.
// A file that has not been finalized is not a valid MP4 file.
func (o *Output) Close() error {
	if o == nil || o.f == nil {
		return nil
	}
	err := o.f.Close()
	o.f = nil
	o.tracks = nil
	o.metadata = nil
	return err
}

func (o *Output) checkWritable() error {
	if o.f == nil {
		return fmt.Errorf("output is closed")
	}
	if o.finalized {
		return fmt.Errorf("output is finalized")
	}
	return nil
}

func (o *Output) findTrack(trackID uint32) (*outputTrack, error) {
	if trackID == 0 || int(trackID) > len(o.tracks) {
		return nil, fmt.Errorf("track %d not found", trackID)
	}
	return o.tracks[trackID-1], nil
}

// SetMovieParams sets the movie parameters.
// They must be set before the first sample is appended.
func (o *Output) SetMovieParams(params MovieParams) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	if o.headerWritten {
		return fmt.Errorf("movie parameters must be set before appending samples")
	}

	if params.Timescale == 0 {
		params.Timescale = defaultMovieTimescale
	}

	o.movie = params
	return nil
}

// ImportMetadata appends iTunes metadata items.
func (o *Output) ImportMetadata(m Metadata) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	o.metadata = append(o.metadata, m.Items...)
	return nil
}

// CreateTrack creates a track and returns its ID.
func (o *Output) CreateTrack(handler HandlerType) (uint32, error) {
	err := o.checkWritable()
	if err != nil {
		return 0, err
	}

	if handler == (HandlerType{}) {
		return 0, fmt.Errorf("invalid handler type")
	}

	id := uint32(len(o.tracks) + 1)

	o.tracks = append(o.tracks, &outputTrack{
		trackParams: TrackParams{
			TrackID: id,
			Flags:   3,
			Matrix:  [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000},
		},
		mediaParams: MediaParams{
			HandlerType: handler,
			Timescale:   defaultMovieTimescale,
			Language:    LanguageUndetermined,
		},
	})

	return id, nil
}

// SetTrackParams sets the track parameters of a track.
// The track ID contained in params is ignored.
func (o *Output) SetTrackParams(trackID uint32, params TrackParams) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	params.TrackID = trackID
	track.trackParams = params
	return nil
}

// SetMediaParams sets the media parameters of a track.
func (o *Output) SetMediaParams(trackID uint32, params MediaParams) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	if params.Timescale == 0 {
		return fmt.Errorf("invalid timescale")
	}
	if len(track.samples) != 0 && params.Timescale != track.mediaParams.Timescale {
		return fmt.Errorf("timescale cannot be changed after samples have been appended")
	}

	track.mediaParams = params
	return nil
}

// SetCodecConfig sets the decoder configuration of a track.
func (o *Output) SetCodecConfig(trackID uint32, cfg CodecConfig) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	if len(cfg.SampleDescription) < 8 {
		return fmt.Errorf("invalid sample description")
	}

	track.codecConfig = cfg
	return nil
}

// SetTimelineMap sets the edit list of a track.
func (o *Output) SetTimelineMap(trackID uint32, tm TimelineMap) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	if len(tm.Entries) != 0 && tm.MovieTimescale == 0 {
		return fmt.Errorf("invalid movie timescale")
	}

	track.timelineMap = &tm
	return nil
}

func (o *Output) writeHeader() error {
	ftyp, err := marshalFtyp(o.movie)
	if err != nil {
		return err
	}

	_, err = o.f.WriteAt(ftyp, 0)
	if err != nil {
		return err
	}

	o.mdatStart = int64(len(ftyp))

	// mdat with 64-bit size, patched on finalization
	var hdr [mdatHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], 1)
	copy(hdr[4:8], "mdat")

	_, err = o.f.WriteAt(hdr[:], o.mdatStart)
	if err != nil {
		return err
	}

	o.pos = o.mdatStart + mdatHeaderSize
	o.headerWritten = true
	return nil
}

func (o *Output) writeChunk(track *outputTrack) error {
	if len(track.pool) == 0 {
		return nil
	}

	if !o.headerWritten {
		err := o.writeHeader()
		if err != nil {
			return err
		}
	}

	chunk := outputChunk{
		offset:                 uint64(o.pos),
		sampleCount:            uint32(len(track.pool)),
		sampleDescriptionIndex: track.pool[0].SampleDescriptionIndex,
	}

	buf := make([]byte, 0, track.poolSize)
	for _, sa := range track.pool {
		buf = append(buf, sa.Data...)
	}

	_, err := o.f.WriteAt(buf, o.pos)
	if err != nil {
		return err
	}

	o.pos += int64(len(buf))
	track.chunks = append(track.chunks, chunk)
	track.pool = nil
	track.poolSize = 0
	return nil
}

// AppendSample appends a sample to a track.
// Samples are pooled and written in chunks. The sample is consumed.
func (o *Output) AppendSample(trackID uint32, sa *Sample) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	if track.codecConfig.SampleDescription == nil {
		return fmt.Errorf("track %d has no codec configuration", trackID)
	}

	if len(track.samples) != 0 && sa.DTS < track.samples[len(track.samples)-1].dts {
		return fmt.Errorf("track %d: decreasing DTS (%d after %d)",
			trackID, sa.DTS, track.samples[len(track.samples)-1].dts)
	}

	if sa.SampleDescriptionIndex == 0 {
		sa.SampleDescriptionIndex = 1
	}

	if len(track.pool) != 0 &&
		(track.poolDuration(sa.DTS) > o.conf.ChunkDuration ||
			track.poolSize+uint64(sa.Length()) > o.conf.ChunkSize ||
			track.pool[0].SampleDescriptionIndex != sa.SampleDescriptionIndex) {
		err = o.writeChunk(track)
		if err != nil {
			return err
		}
	}

	track.samples = append(track.samples, outputSample{
		dts:                    sa.DTS,
		ctsOffset:              sa.CTSOffset,
		size:                   uint32(sa.Length()),
		isSync:                 sa.IsSync,
		sampleDescriptionIndex: sa.SampleDescriptionIndex,
	})
	track.pool = append(track.pool, sa)
	track.poolSize += uint64(sa.Length())

	return nil
}

// Flush writes the pooled samples of a track and sets the duration of its last sample.
func (o *Output) Flush(trackID uint32, lastSampleDelta uint32) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	track, err := o.findTrack(trackID)
	if err != nil {
		return err
	}

	err = o.writeChunk(track)
	if err != nil {
		return err
	}

	track.lastDelta = lastSampleDelta
	return nil
}
