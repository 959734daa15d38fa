package container

import (
	"math"

	"github.com/abema/go-mp4"
)

var defaultBrands = MovieParams{
	MajorBrand:   Brand{'i', 's', 'o', 'm'},
	MinorVersion: 512,
	CompatibleBrands: []Brand{
		{'i', 's', 'o', 'm'},
		{'i', 's', 'o', '2'},
		{'m', 'p', '4', '1'},
	},
}

var boxTypeMdir = [4]byte{'m', 'd', 'i', 'r'}

func marshalFtyp(movie MovieParams) ([]byte, error) {
	if movie.MajorBrand == (Brand{}) {
		movie.MajorBrand = defaultBrands.MajorBrand
		movie.MinorVersion = defaultBrands.MinorVersion
		movie.CompatibleBrands = defaultBrands.CompatibleBrands
	}

	ftyp := &mp4.Ftyp{
		MajorBrand:   movie.MajorBrand,
		MinorVersion: movie.MinorVersion,
	}
	for _, b := range movie.CompatibleBrands {
		ftyp.CompatibleBrands = append(ftyp.CompatibleBrands, mp4.CompatibleBrandElem{CompatibleBrand: b})
	}

	w := newMP4Writer()
	_, err := w.writeBox(ftyp)
	if err != nil {
		return nil, err
	}

	return w.bytes(), nil
}

func rescale(v uint64, from uint32, to uint32) uint64 {
	if from == to {
		return v
	}
	return uint64(float64(v)*float64(to)/float64(from) + 0.5)
}

func (t *outputTrack) mediaDuration() uint64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1].dts - t.samples[0].dts + uint64(t.lastDelta)
}

// presentationDuration returns the duration of the track in movie timescale.
func (t *outputTrack) presentationDuration(movieTimescale uint32) uint64 {
	if t.timelineMap != nil && len(t.timelineMap.Entries) != 0 {
		var d uint64
		for _, e := range t.timelineMap.Entries {
			d += rescale(e.SegmentDuration, t.timelineMap.MovieTimescale, movieTimescale)
		}
		return d
	}
	return rescale(t.mediaDuration(), t.mediaParams.Timescale, movieTimescale)
}

type moovMarshaler struct {
	w      *mp4Writer
	movie  MovieParams
	tracks []*outputTrack
	// offset added to every chunk offset
	shift int64
}

func (m *moovMarshaler) marshal(metadata []byte) ([]byte, error) {
	/*
		|moov|
		|    |mvhd|
		|    |trak|
		|    |....|
		|    |udta|
		|    |    |meta|
		|    |    |    |hdlr|
		|    |    |    |ilst|
	*/

	m.w = newMP4Writer()

	_, err := m.w.writeBoxStart(&mp4.Moov{}) // <moov>
	if err != nil {
		return nil, err
	}

	var movieDuration uint64
	for _, track := range m.tracks {
		if d := track.presentationDuration(m.movie.Timescale); d > movieDuration {
			movieDuration = d
		}
	}

	mvhd := &mp4.Mvhd{ // <mvhd/>
		Timescale:   m.movie.Timescale,
		Rate:        65536,
		Volume:      256,
		Matrix:      [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
		NextTrackID: uint32(len(m.tracks) + 1),
	}
	if movieDuration > math.MaxUint32 {
		mvhd.Version = 1
		mvhd.DurationV1 = movieDuration
	} else {
		mvhd.DurationV0 = uint32(movieDuration)
	}

	_, err = m.w.writeBox(mvhd)
	if err != nil {
		return nil, err
	}

	for _, track := range m.tracks {
		err = m.marshalTrack(track)
		if err != nil {
			return nil, err
		}
	}

	if len(metadata) != 0 {
		err = m.marshalMetadata(metadata)
		if err != nil {
			return nil, err
		}
	}

	err = m.w.writeBoxEnd() // </moov>
	if err != nil {
		return nil, err
	}

	return m.w.bytes(), nil
}

func flagsToUint32(f [3]byte) uint32 {
	return uint32(f[0])<<16 | uint32(f[1])<<8 | uint32(f[2])
}

func uint32ToFlags(v uint32) [3]byte {
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func (m *moovMarshaler) marshalTrack(t *outputTrack) error {
	/*
		|trak|
		|    |tkhd|
		|    |edts|
		|    |    |elst|
		|    |mdia|
		|    |    |mdhd|
		|    |    |hdlr|
		|    |    |minf|
		|    |    |    |vmhd| (or any other media header)
		|    |    |    |dinf|
		|    |    |    |    |dref|
		|    |    |    |    |    |url|
		|    |    |    |stbl|
		|    |    |    |    |stsd|
		|    |    |    |    |stts|
		|    |    |    |    |ctts|
		|    |    |    |    |stss|
		|    |    |    |    |stsc|
		|    |    |    |    |stsz|
		|    |    |    |    |stco| (or co64)
	*/

	_, err := m.w.writeBoxStart(&mp4.Trak{}) // <trak>
	if err != nil {
		return err
	}

	presentationDuration := t.presentationDuration(m.movie.Timescale)

	tkhd := &mp4.Tkhd{ // <tkhd/>
		FullBox: mp4.FullBox{
			Flags: uint32ToFlags(t.trackParams.Flags),
		},
		TrackID:        t.trackParams.TrackID,
		Layer:          t.trackParams.Layer,
		AlternateGroup: t.trackParams.AlternateGroup,
		Volume:         t.trackParams.Volume,
		Matrix:         t.trackParams.Matrix,
		Width:          t.trackParams.Width,
		Height:         t.trackParams.Height,
	}
	if presentationDuration > math.MaxUint32 {
		tkhd.Version = 1
		tkhd.DurationV1 = presentationDuration
	} else {
		tkhd.DurationV0 = uint32(presentationDuration)
	}

	_, err = m.w.writeBox(tkhd)
	if err != nil {
		return err
	}

	if t.timelineMap != nil && len(t.timelineMap.Entries) != 0 {
		err = m.marshalEDTS(t)
		if err != nil {
			return err
		}
	}

	_, err = m.w.writeBoxStart(&mp4.Mdia{}) // <mdia>
	if err != nil {
		return err
	}

	mediaDuration := t.mediaDuration()

	mdhd := &mp4.Mdhd{ // <mdhd/>
		Timescale: t.mediaParams.Timescale,
		Language:  t.mediaParams.Language.bytes(),
	}
	if mediaDuration > math.MaxUint32 {
		mdhd.Version = 1
		mdhd.DurationV1 = mediaDuration
	} else {
		mdhd.DurationV0 = uint32(mediaDuration)
	}

	_, err = m.w.writeBox(mdhd)
	if err != nil {
		return err
	}

	_, err = m.w.writeBox(&mp4.Hdlr{ // <hdlr/>
		HandlerType: t.mediaParams.HandlerType,
		Name:        t.mediaParams.HandlerName,
	})
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Minf{}) // <minf>
	if err != nil {
		return err
	}

	err = m.marshalMediaHeader(t)
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Dinf{}) // <dinf>
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Dref{ // <dref>
		EntryCount: 1,
	})
	if err != nil {
		return err
	}

	_, err = m.w.writeBox(&mp4.Url{ // <url/>
		FullBox: mp4.FullBox{
			Flags: [3]byte{0, 0, 1},
		},
	})
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </dref>
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </dinf>
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Stbl{}) // <stbl>
	if err != nil {
		return err
	}

	err = m.w.writeRaw(t.codecConfig.SampleDescription) // <stsd/>
	if err != nil {
		return err
	}

	err = m.marshalSTTS(t) // <stts/>
	if err != nil {
		return err
	}

	err = m.marshalCTTS(t) // <ctts/>
	if err != nil {
		return err
	}

	err = m.marshalSTSS(t) // <stss/>
	if err != nil {
		return err
	}

	err = m.marshalSTSC(t) // <stsc/>
	if err != nil {
		return err
	}

	err = m.marshalSTSZ(t) // <stsz/>
	if err != nil {
		return err
	}

	err = m.marshalChunkOffsets(t) // <stco/> or <co64/>
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </stbl>
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </minf>
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </mdia>
	if err != nil {
		return err
	}

	return m.w.writeBoxEnd() // </trak>
}

func (m *moovMarshaler) marshalEDTS(t *outputTrack) error {
	elst := &mp4.Elst{
		EntryCount: uint32(len(t.timelineMap.Entries)),
		Entries:    make([]mp4.ElstEntry, len(t.timelineMap.Entries)),
	}

	durations := make([]uint64, len(t.timelineMap.Entries))
	for i, e := range t.timelineMap.Entries {
		durations[i] = rescale(e.SegmentDuration, t.timelineMap.MovieTimescale, m.movie.Timescale)
		if durations[i] > math.MaxUint32 || e.MediaTime > math.MaxInt32 || e.MediaTime < math.MinInt32 {
			elst.Version = 1
		}
	}

	for i, e := range t.timelineMap.Entries {
		entry := &elst.Entries[i]
		entry.MediaRateInteger = int16(e.MediaRate >> 16)
		entry.MediaRateFraction = int16(e.MediaRate & 0xFFFF)

		if elst.Version == 1 {
			entry.SegmentDurationV1 = durations[i]
			entry.MediaTimeV1 = e.MediaTime
		} else {
			entry.SegmentDurationV0 = uint32(durations[i])
			entry.MediaTimeV0 = int32(e.MediaTime)
		}
	}

	_, err := m.w.writeBoxStart(&mp4.Edts{}) // <edts>
	if err != nil {
		return err
	}

	_, err = m.w.writeBox(elst) // <elst/>
	if err != nil {
		return err
	}

	return m.w.writeBoxEnd() // </edts>
}

func (m *moovMarshaler) marshalMediaHeader(t *outputTrack) error {
	if t.mediaParams.MediaHeader != nil {
		return m.w.writeRaw(t.mediaParams.MediaHeader)
	}

	switch t.mediaParams.HandlerType {
	case HandlerVideo:
		_, err := m.w.writeBox(&mp4.Vmhd{
			FullBox: mp4.FullBox{
				Flags: [3]byte{0, 0, 1},
			},
		})
		return err

	case HandlerAudio:
		_, err := m.w.writeBox(&mp4.Smhd{})
		return err

	case HandlerHint:
		// fields of the hint media header are left to zero.
		return m.w.writeRaw([]byte{
			0, 0, 0, 28, 'h', 'm', 'h', 'd', 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		})

	case HandlerSubtitle:
		return m.w.writeRaw([]byte{0, 0, 0, 12, 's', 't', 'h', 'd', 0, 0, 0, 0})
	}

	// null media header, used by text tracks too
	return m.w.writeRaw([]byte{0, 0, 0, 12, 'n', 'm', 'h', 'd', 0, 0, 0, 0})
}

func (m *moovMarshaler) marshalSTTS(t *outputTrack) error {
	var entries []mp4.SttsEntry

	for i := range t.samples {
		var delta uint32
		if i == len(t.samples)-1 {
			delta = t.lastDelta
		} else {
			delta = uint32(t.samples[i+1].dts - t.samples[i].dts)
		}

		if len(entries) != 0 && entries[len(entries)-1].SampleDelta == delta {
			entries[len(entries)-1].SampleCount++
		} else {
			entries = append(entries, mp4.SttsEntry{
				SampleCount: 1,
				SampleDelta: delta,
			})
		}
	}

	_, err := m.w.writeBox(&mp4.Stts{
		EntryCount: uint32(len(entries)),
		Entries:    entries,
	})
	return err
}

func (m *moovMarshaler) marshalCTTS(t *outputTrack) error {
	needed := false
	negative := false
	for _, sa := range t.samples {
		if sa.ctsOffset != 0 {
			needed = true
		}
		if sa.ctsOffset < 0 {
			negative = true
		}
	}

	if !needed {
		return nil
	}

	ctts := &mp4.Ctts{}
	if negative {
		ctts.Version = 1
	}

	for i, sa := range t.samples {
		if i != 0 && t.samples[i-1].ctsOffset == sa.ctsOffset {
			ctts.Entries[len(ctts.Entries)-1].SampleCount++
			continue
		}

		if negative {
			ctts.Entries = append(ctts.Entries, mp4.CttsEntry{
				SampleCount:    1,
				SampleOffsetV1: int32(sa.ctsOffset),
			})
		} else {
			ctts.Entries = append(ctts.Entries, mp4.CttsEntry{
				SampleCount:    1,
				SampleOffsetV0: uint32(sa.ctsOffset),
			})
		}
	}
	ctts.EntryCount = uint32(len(ctts.Entries))

	_, err := m.w.writeBox(ctts)
	return err
}

func (m *moovMarshaler) marshalSTSS(t *outputTrack) error {
	var sampleNumbers []uint32
	allSync := true

	for i, sa := range t.samples {
		if sa.isSync {
			sampleNumbers = append(sampleNumbers, uint32(i+1))
		} else {
			allSync = false
		}
	}

	if allSync {
		return nil
	}

	_, err := m.w.writeBox(&mp4.Stss{
		EntryCount:   uint32(len(sampleNumbers)),
		SampleNumber: sampleNumbers,
	})
	return err
}

func (m *moovMarshaler) marshalSTSC(t *outputTrack) error {
	var entries []mp4.StscEntry

	for i, chunk := range t.chunks {
		if len(entries) != 0 {
			last := entries[len(entries)-1]
			if last.SamplesPerChunk == chunk.sampleCount &&
				last.SampleDescriptionIndex == chunk.sampleDescriptionIndex {
				continue
			}
		}

		entries = append(entries, mp4.StscEntry{
			FirstChunk:             uint32(i + 1),
			SamplesPerChunk:        chunk.sampleCount,
			SampleDescriptionIndex: chunk.sampleDescriptionIndex,
		})
	}

	_, err := m.w.writeBox(&mp4.Stsc{
		EntryCount: uint32(len(entries)),
		Entries:    entries,
	})
	return err
}

func (m *moovMarshaler) marshalSTSZ(t *outputTrack) error {
	stsz := &mp4.Stsz{
		SampleCount: uint32(len(t.samples)),
	}

	constant := len(t.samples) != 0
	for _, sa := range t.samples {
		if sa.size != t.samples[0].size {
			constant = false
			break
		}
	}

	if constant {
		stsz.SampleSize = t.samples[0].size
	} else {
		stsz.EntrySize = make([]uint32, len(t.samples))
		for i, sa := range t.samples {
			stsz.EntrySize[i] = sa.size
		}
	}

	_, err := m.w.writeBox(stsz)
	return err
}

func (m *moovMarshaler) marshalChunkOffsets(t *outputTrack) error {
	use64 := false
	for _, chunk := range t.chunks {
		if uint64(int64(chunk.offset)+m.shift) > math.MaxUint32 {
			use64 = true
			break
		}
	}

	if use64 {
		co64 := &mp4.Co64{
			EntryCount:  uint32(len(t.chunks)),
			ChunkOffset: make([]uint64, len(t.chunks)),
		}
		for i, chunk := range t.chunks {
			co64.ChunkOffset[i] = uint64(int64(chunk.offset) + m.shift)
		}

		_, err := m.w.writeBox(co64)
		return err
	}

	stco := &mp4.Stco{
		EntryCount:  uint32(len(t.chunks)),
		ChunkOffset: make([]uint32, len(t.chunks)),
	}
	for i, chunk := range t.chunks {
		stco.ChunkOffset[i] = uint32(int64(chunk.offset) + m.shift)
	}

	_, err := m.w.writeBox(stco)
	return err
}

func (m *moovMarshaler) marshalMetadata(items []byte) error {
	_, err := m.w.writeBoxStart(&mp4.Udta{}) // <udta>
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Meta{}) // <meta>
	if err != nil {
		return err
	}

	_, err = m.w.writeBox(&mp4.Hdlr{ // <hdlr/>
		HandlerType: boxTypeMdir,
	})
	if err != nil {
		return err
	}

	_, err = m.w.writeBoxStart(&mp4.Ilst{}) // <ilst>
	if err != nil {
		return err
	}

	err = m.w.writeRaw(items)
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </ilst>
	if err != nil {
		return err
	}

	err = m.w.writeBoxEnd() // </meta>
	if err != nil {
		return err
	}

	return m.w.writeBoxEnd() // </udta>
}
