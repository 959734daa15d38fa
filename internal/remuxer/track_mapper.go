package remuxer

import (
	"github.com/bluenviron/mp4remuxer/internal/trackoption"
)

// TrackKey identifies a track of a source.
// Both indexes start from 1.
type TrackKey struct {
	Source int
	Track  int
}

type mappedTrack struct {
	key        TrackKey
	source     Source
	inTrackID  uint32
	outTrackID uint32
	timescale  uint32
	lastDelta  uint32
}

// trackMapper creates one output track for every input track.
type trackMapper struct {
	sources   []Source
	overrides []map[int]trackoption.Override
	sink      Sink

	tracks []*mappedTrack
}

// prepare builds the timelines of every input track.
// It doesn't touch the sink.
func (m *trackMapper) prepare() error {
	for i, src := range m.sources {
		for j, trackID := range src.Tracks() {
			key := TrackKey{Source: i + 1, Track: j + 1}

			mp, err := src.MediaParams(trackID)
			if err != nil {
				return NewError(ErrorKindSource, "source %d: %w", key.Source, err)
			}

			err = src.BuildTimeline(trackID)
			if err != nil {
				return NewError(ErrorKindSource, "source %d: %w", key.Source, err)
			}

			lastDelta, err := src.LastSampleDelta(trackID)
			if err != nil {
				return NewError(ErrorKindSource, "source %d: %w", key.Source, err)
			}

			t := &mappedTrack{
				key:       key,
				source:    src,
				inTrackID: trackID,
				timescale: mp.Timescale,
				lastDelta: lastDelta,
			}
			m.tracks = append(m.tracks, t)
		}
	}

	return nil
}

func (m *trackMapper) override(key TrackKey) trackoption.Override {
	if key.Source > len(m.overrides) {
		return trackoption.Override{}
	}
	return m.overrides[key.Source-1][key.Track]
}

// create creates the output tracks, in source order.
func (m *trackMapper) create() error {
	for _, t := range m.tracks {
		tp, err := t.source.TrackParams(t.inTrackID)
		if err != nil {
			return NewError(ErrorKindSource, "source %d: %w", t.key.Source, err)
		}

		mp, err := t.source.MediaParams(t.inTrackID)
		if err != nil {
			return NewError(ErrorKindSource, "source %d: %w", t.key.Source, err)
		}

		cc, err := t.source.CodecConfig(t.inTrackID)
		if err != nil {
			return NewError(ErrorKindSource, "source %d: %w", t.key.Source, err)
		}

		ov := m.override(t.key)
		if ov.AlternateGroup != nil {
			tp.AlternateGroup = *ov.AlternateGroup
		}
		if ov.Language != nil {
			mp.Language = *ov.Language
		}

		t.outTrackID, err = m.sink.CreateTrack(mp.HandlerType)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to create a track: %w", err)
		}

		tp.TrackID = t.outTrackID

		err = m.sink.SetTrackParams(t.outTrackID, tp)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to set track parameters: %w", err)
		}

		err = m.sink.SetMediaParams(t.outTrackID, mp)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to set media parameters: %w", err)
		}

		err = m.sink.SetCodecConfig(t.outTrackID, cc)
		if err != nil {
			return NewError(ErrorKindTransfer, "unable to copy codec configuration: %w", err)
		}
	}

	return nil
}
