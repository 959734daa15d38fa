package remuxer

import (
	"fmt"

	"github.com/bluenviron/mp4remuxer/internal/container"
)

type fakeTrack struct {
	handler     container.HandlerType
	timescale   uint32
	dts         []uint64
	size        int
	lastDelta   uint32
	params      container.TrackParams
	language    container.Language
	timelineMap container.TimelineMap

	built   bool
	fetched map[uint32]int
}

type fakeSource struct {
	movie    container.MovieParams
	tracks   []*fakeTrack
	metadata container.Metadata
	dtsErr   error
	buildErr error
}

func (s *fakeSource) track(trackID uint32) (*fakeTrack, error) {
	if trackID == 0 || int(trackID) > len(s.tracks) {
		return nil, fmt.Errorf("track %d not found", trackID)
	}
	return s.tracks[trackID-1], nil
}

func (s *fakeSource) MovieParams() container.MovieParams {
	return s.movie
}

func (s *fakeSource) Tracks() []uint32 {
	ret := make([]uint32, len(s.tracks))
	for i := range s.tracks {
		ret[i] = uint32(i + 1)
	}
	return ret
}

func (s *fakeSource) TrackParams(trackID uint32) (container.TrackParams, error) {
	t, err := s.track(trackID)
	if err != nil {
		return container.TrackParams{}, err
	}
	p := t.params
	p.TrackID = trackID
	return p, nil
}

func (s *fakeSource) MediaParams(trackID uint32) (container.MediaParams, error) {
	t, err := s.track(trackID)
	if err != nil {
		return container.MediaParams{}, err
	}
	return container.MediaParams{
		HandlerType: t.handler,
		Timescale:   t.timescale,
		Language:    t.language,
	}, nil
}

func (s *fakeSource) CodecConfig(trackID uint32) (container.CodecConfig, error) {
	_, err := s.track(trackID)
	if err != nil {
		return container.CodecConfig{}, err
	}
	return container.CodecConfig{SampleDescription: []byte{0, 0, 0, 8, 's', 't', 's', 'd'}}, nil
}

func (s *fakeSource) TimelineMap(trackID uint32) (container.TimelineMap, error) {
	t, err := s.track(trackID)
	if err != nil {
		return container.TimelineMap{}, err
	}
	return t.timelineMap, nil
}

func (s *fakeSource) ExportMetadata() container.Metadata {
	return s.metadata
}

func (s *fakeSource) BuildTimeline(trackID uint32) error {
	if s.buildErr != nil {
		return s.buildErr
	}
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.built = true
	t.fetched = make(map[uint32]int)
	return nil
}

func (s *fakeSource) LastSampleDelta(trackID uint32) (uint32, error) {
	t, err := s.track(trackID)
	if err != nil {
		return 0, err
	}
	return t.lastDelta, nil
}

func (s *fakeSource) DTS(trackID uint32, sampleNumber uint32) (uint64, error) {
	t, err := s.track(trackID)
	if err != nil {
		return 0, err
	}
	if !t.built {
		return 0, fmt.Errorf("timeline not built")
	}
	if s.dtsErr != nil {
		return 0, s.dtsErr
	}
	if int(sampleNumber) > len(t.dts) {
		return 0, container.ErrSampleNotFound
	}
	return t.dts[sampleNumber-1], nil
}

func (s *fakeSource) Sample(trackID uint32, sampleNumber uint32) (*container.Sample, error) {
	dts, err := s.DTS(trackID, sampleNumber)
	if err != nil {
		return nil, err
	}
	t := s.tracks[trackID-1]
	t.fetched[sampleNumber]++
	return &container.Sample{
		DTS:    dts,
		IsSync: true,
		Data:   make([]byte, t.size),
	}, nil
}

type fakeSinkTrack struct {
	handler     container.HandlerType
	params      container.TrackParams
	media       container.MediaParams
	codec       container.CodecConfig
	samples     []*container.Sample
	lastDelta   uint32
	flushed     bool
	timelineMap container.TimelineMap
}

type appendEvent struct {
	trackID uint32
	dts     uint64
}

type fakeSink struct {
	movie     container.MovieParams
	metadata  []byte
	tracks    []*fakeSinkTrack
	events    []appendEvent
	finalized bool

	createErr   error
	appendErr   error
	finalizeErr error
}

func (s *fakeSink) track(trackID uint32) (*fakeSinkTrack, error) {
	if trackID == 0 || int(trackID) > len(s.tracks) {
		return nil, fmt.Errorf("track %d not found", trackID)
	}
	return s.tracks[trackID-1], nil
}

func (s *fakeSink) SetMovieParams(params container.MovieParams) error {
	s.movie = params
	return nil
}

func (s *fakeSink) ImportMetadata(m container.Metadata) error {
	s.metadata = append(s.metadata, m.Items...)
	return nil
}

func (s *fakeSink) CreateTrack(handler container.HandlerType) (uint32, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.tracks = append(s.tracks, &fakeSinkTrack{handler: handler})
	return uint32(len(s.tracks)), nil
}

func (s *fakeSink) SetTrackParams(trackID uint32, params container.TrackParams) error {
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.params = params
	return nil
}

func (s *fakeSink) SetMediaParams(trackID uint32, params container.MediaParams) error {
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.media = params
	return nil
}

func (s *fakeSink) SetCodecConfig(trackID uint32, cfg container.CodecConfig) error {
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.codec = cfg
	return nil
}

func (s *fakeSink) AppendSample(trackID uint32, sa *container.Sample) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.samples = append(t.samples, sa)
	s.events = append(s.events, appendEvent{trackID: trackID, dts: sa.DTS})
	return nil
}

func (s *fakeSink) Flush(trackID uint32, lastSampleDelta uint32) error {
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.flushed = true
	t.lastDelta = lastSampleDelta
	return nil
}

func (s *fakeSink) SetTimelineMap(trackID uint32, tm container.TimelineMap) error {
	t, err := s.track(trackID)
	if err != nil {
		return err
	}
	t.timelineMap = tm
	return nil
}

func (s *fakeSink) Finalize(progress container.ProgressFunc) error {
	if s.finalizeErr != nil {
		return s.finalizeErr
	}
	progress(50, 100)
	progress(100, 100)
	s.finalized = true
	return nil
}

func newFakeTrack(timescale uint32, dts ...uint64) *fakeTrack {
	return &fakeTrack{
		handler:   container.HandlerVideo,
		timescale: timescale,
		dts:       dts,
		size:      10,
		lastDelta: 1,
		language:  container.LanguageUndetermined,
	}
}
