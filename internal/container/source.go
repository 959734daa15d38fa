package container

import (
	"fmt"
	"os"

	"github.com/abema/go-mp4"
)

func boxTypeNmhd() mp4.BoxType { return mp4.StrToBoxType("nmhd") }
func boxTypeHmhd() mp4.BoxType { return mp4.StrToBoxType("hmhd") }
func boxTypeSthd() mp4.BoxType { return mp4.StrToBoxType("sthd") }
func boxTypeGmhd() mp4.BoxType { return mp4.StrToBoxType("gmhd") }

// inTrack checks whether a box is a descendant of moov/trak.
func inTrack(path mp4.BoxPath) bool {
	return len(path) >= 3 && path[0] == mp4.BoxTypeMoov() && path[1] == mp4.BoxTypeTrak()
}

func isMediaHeader(t mp4.BoxType) bool {
	switch t {
	case mp4.BoxTypeVmhd(), mp4.BoxTypeSmhd(), boxTypeNmhd(), boxTypeHmhd(), boxTypeSthd(), boxTypeGmhd():
		return true
	}
	return false
}

type sourceTrack struct {
	trackParams TrackParams
	mediaParams MediaParams
	codecConfig CodecConfig
	timelineMap TimelineMap
	tables      sampleTables
	timeline    *timeline
}

// Source is a file opened for reading.
type Source struct {
	f        *os.File
	movie    MovieParams
	tracks   []*sourceTrack
	metadata Metadata
}

// OpenSource opens a file for reading.
func OpenSource(path string) (*Source, error) {
	if path == "-" {
		return nil, fmt.Errorf("standard input is not supported")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	s := &Source{
		f: f,
	}

	err = s.readHeader()
	if err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the Source. It can be called multiple times.
func (s *Source) Close() error {
	if s == nil || s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.tracks = nil
	s.metadata = Metadata{}
	return err
}

func readRaw(f *os.File, off uint64, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	_, err := f.ReadAt(buf, int64(off))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Source) readHeader() error {
	moovFound := false
	fragmented := false
	var cur *sourceTrack

	_, err := mp4.ReadBoxStructure(s.f, func(h *mp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type {
		case mp4.BoxTypeFtyp():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			ftyp := box.(*mp4.Ftyp)
			s.movie.MajorBrand = ftyp.MajorBrand
			s.movie.MinorVersion = ftyp.MinorVersion
			for _, b := range ftyp.CompatibleBrands {
				s.movie.CompatibleBrands = append(s.movie.CompatibleBrands, b.CompatibleBrand)
			}

		case mp4.BoxTypeMoov():
			moovFound = true
			return h.Expand()

		case mp4.BoxTypeMoof(), mp4.BoxTypeMvex():
			fragmented = true

		case mp4.BoxTypeMvhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			s.movie.Timescale = box.(*mp4.Mvhd).Timescale

		case mp4.BoxTypeTrak():
			if len(h.Path) != 2 || h.Path[0] != mp4.BoxTypeMoov() {
				return nil, fmt.Errorf("trak box outside of moov")
			}
			cur = &sourceTrack{}
			s.tracks = append(s.tracks, cur)
			return h.Expand()

		case mp4.BoxTypeEdts(), mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl():
			if cur != nil && inTrack(h.Path) {
				return h.Expand()
			}

		case mp4.BoxTypeUdta():
			if len(h.Path) == 2 {
				return h.Expand()
			}

		case mp4.BoxTypeMeta():
			if len(h.Path) == 3 && h.Path[1] == mp4.BoxTypeUdta() {
				return h.Expand()
			}

		case mp4.BoxTypeIlst():
			if len(h.Path) == 4 && h.Path[1] == mp4.BoxTypeUdta() {
				items, err := readRaw(s.f, h.BoxInfo.Offset+h.BoxInfo.HeaderSize,
					h.BoxInfo.Size-h.BoxInfo.HeaderSize)
				if err != nil {
					return nil, err
				}
				s.metadata.Items = append(s.metadata.Items, items...)
			}

		case mp4.BoxTypeTkhd():
			if cur == nil || !inTrack(h.Path) {
				return nil, fmt.Errorf("%s box outside of a track", h.BoxInfo.Type)
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			tkhd := box.(*mp4.Tkhd)
			cur.trackParams = TrackParams{
				TrackID:        tkhd.TrackID,
				Flags:          flagsToUint32(tkhd.Flags),
				Layer:          tkhd.Layer,
				AlternateGroup: tkhd.AlternateGroup,
				Volume:         tkhd.Volume,
				Matrix:         tkhd.Matrix,
				Width:          tkhd.Width,
				Height:         tkhd.Height,
			}

		case mp4.BoxTypeElst():
			if cur == nil || !inTrack(h.Path) {
				return nil, fmt.Errorf("%s box outside of a track", h.BoxInfo.Type)
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			elst := box.(*mp4.Elst)
			for _, e := range elst.Entries {
				entry := EditEntry{
					MediaRate: int32(e.MediaRateInteger)<<16 | int32(uint16(e.MediaRateFraction)),
				}
				if elst.Version == 1 {
					entry.SegmentDuration = e.SegmentDurationV1
					entry.MediaTime = e.MediaTimeV1
				} else {
					entry.SegmentDuration = uint64(e.SegmentDurationV0)
					entry.MediaTime = int64(e.MediaTimeV0)
				}
				cur.timelineMap.Entries = append(cur.timelineMap.Entries, entry)
			}

		case mp4.BoxTypeMdhd():
			if cur == nil || !inTrack(h.Path) {
				return nil, fmt.Errorf("%s box outside of a track", h.BoxInfo.Type)
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			mdhd := box.(*mp4.Mdhd)
			cur.mediaParams.Timescale = mdhd.Timescale
			cur.mediaParams.Language = languageFromBytes(mdhd.Language)

		case mp4.BoxTypeHdlr():
			if cur != nil && inTrack(h.Path) && h.Path[len(h.Path)-2] == mp4.BoxTypeMdia() {
				box, _, err := h.ReadPayload()
				if err != nil {
					return nil, err
				}
				hdlr := box.(*mp4.Hdlr)
				cur.mediaParams.HandlerType = hdlr.HandlerType
				cur.mediaParams.HandlerName = hdlr.Name
			}

		case mp4.BoxTypeStsd():
			if cur == nil || !inTrack(h.Path) {
				return nil, fmt.Errorf("%s box outside of a track", h.BoxInfo.Type)
			}
			raw, err := readRaw(s.f, h.BoxInfo.Offset, h.BoxInfo.Size)
			if err != nil {
				return nil, err
			}
			cur.codecConfig.SampleDescription = raw

		case mp4.BoxTypeStts(), mp4.BoxTypeCtts(), mp4.BoxTypeStss(), mp4.BoxTypeStsc(),
			mp4.BoxTypeStsz(), mp4.BoxTypeStco(), mp4.BoxTypeCo64():
			if cur == nil || !inTrack(h.Path) {
				return nil, fmt.Errorf("%s box outside of a track", h.BoxInfo.Type)
			}
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			cur.tables.set(box)

		default:
			if cur != nil && inTrack(h.Path) && h.Path[len(h.Path)-2] == mp4.BoxTypeMinf() &&
				isMediaHeader(h.BoxInfo.Type) && cur.mediaParams.MediaHeader == nil {
				raw, err := readRaw(s.f, h.BoxInfo.Offset, h.BoxInfo.Size)
				if err != nil {
					return nil, err
				}
				cur.mediaParams.MediaHeader = raw
			}
		}

		return nil, nil
	})
	if err != nil {
		return err
	}

	if fragmented {
		return fmt.Errorf("fragmented files are not supported")
	}

	if !moovFound {
		return fmt.Errorf("moov box not found")
	}

	for _, track := range s.tracks {
		track.timelineMap.MovieTimescale = s.movie.Timescale

		if track.trackParams.TrackID == 0 {
			return fmt.Errorf("track without a track header")
		}
		if track.mediaParams.Timescale == 0 {
			return fmt.Errorf("track %d has an invalid timescale", track.trackParams.TrackID)
		}
		if track.codecConfig.SampleDescription == nil {
			return fmt.Errorf("track %d has no sample description", track.trackParams.TrackID)
		}
	}

	return nil
}

func (s *Source) findTrack(trackID uint32) (*sourceTrack, error) {
	for _, track := range s.tracks {
		if track.trackParams.TrackID == trackID {
			return track, nil
		}
	}
	return nil, fmt.Errorf("track %d not found", trackID)
}

func (s *Source) findTrackWithTimeline(trackID uint32) (*sourceTrack, error) {
	track, err := s.findTrack(trackID)
	if err != nil {
		return nil, err
	}

	if track.timeline == nil {
		return nil, fmt.Errorf("timeline of track %d has not been built", trackID)
	}

	return track, nil
}

// MovieParams returns the movie parameters.
func (s *Source) MovieParams() MovieParams {
	return s.movie
}

// Tracks returns the IDs of all tracks, in file order.
func (s *Source) Tracks() []uint32 {
	ret := make([]uint32, len(s.tracks))
	for i, track := range s.tracks {
		ret[i] = track.trackParams.TrackID
	}
	return ret
}

// TrackParams returns the track parameters of a track.
func (s *Source) TrackParams(trackID uint32) (TrackParams, error) {
	track, err := s.findTrack(trackID)
	if err != nil {
		return TrackParams{}, err
	}
	return track.trackParams, nil
}

// MediaParams returns the media parameters of a track.
func (s *Source) MediaParams(trackID uint32) (MediaParams, error) {
	track, err := s.findTrack(trackID)
	if err != nil {
		return MediaParams{}, err
	}
	return track.mediaParams, nil
}

// CodecConfig returns the decoder configuration of a track.
func (s *Source) CodecConfig(trackID uint32) (CodecConfig, error) {
	track, err := s.findTrack(trackID)
	if err != nil {
		return CodecConfig{}, err
	}
	return track.codecConfig, nil
}

// TimelineMap returns the edit list of a track.
func (s *Source) TimelineMap(trackID uint32) (TimelineMap, error) {
	track, err := s.findTrack(trackID)
	if err != nil {
		return TimelineMap{}, err
	}
	return track.timelineMap, nil
}

// ExportMetadata returns the iTunes metadata of the file.
func (s *Source) ExportMetadata() Metadata {
	return s.metadata
}

// BuildTimeline builds the sample timeline of a track.
// It must be called before any timestamp or sample query.
func (s *Source) BuildTimeline(trackID uint32) error {
	track, err := s.findTrack(trackID)
	if err != nil {
		return err
	}

	tl, err := track.tables.build()
	if err != nil {
		return fmt.Errorf("track %d: %w", trackID, err)
	}

	track.timeline = tl
	return nil
}

// LastSampleDelta returns the duration of the last sample of a track.
func (s *Source) LastSampleDelta(trackID uint32) (uint32, error) {
	track, err := s.findTrackWithTimeline(trackID)
	if err != nil {
		return 0, err
	}
	return track.timeline.lastSampleDelta(), nil
}

// DTS returns the decode timestamp of a sample. Samples are numbered from 1.
// It returns ErrSampleNotFound when the sample does not exist.
func (s *Source) DTS(trackID uint32, sampleNumber uint32) (uint64, error) {
	track, err := s.findTrackWithTimeline(trackID)
	if err != nil {
		return 0, err
	}

	sa, err := track.timeline.sample(sampleNumber)
	if err != nil {
		return 0, err
	}

	return sa.dts, nil
}

// Sample reads a sample. Samples are numbered from 1.
func (s *Source) Sample(trackID uint32, sampleNumber uint32) (*Sample, error) {
	track, err := s.findTrackWithTimeline(trackID)
	if err != nil {
		return nil, err
	}

	sa, err := track.timeline.sample(sampleNumber)
	if err != nil {
		return nil, err
	}

	data, err := readRaw(s.f, sa.offset, uint64(sa.size))
	if err != nil {
		return nil, fmt.Errorf("unable to read sample %d of track %d: %w", sampleNumber, trackID, err)
	}

	return &Sample{
		DTS:                    sa.dts,
		CTSOffset:              sa.ctsOffset,
		IsSync:                 sa.isSync,
		SampleDescriptionIndex: sa.sampleDescriptionIndex,
		Data:                   data,
	}, nil
}
