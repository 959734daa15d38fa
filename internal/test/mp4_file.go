package test

import (
	"encoding/binary"

	"github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
)

// SPS is a H264 SPS (1920x1080 baseline).
var SPS = []byte{
	0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
	0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
	0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9, 0x20,
}

// PPS is a H264 PPS.
var PPS = []byte{0x08, 0x06, 0x07, 0x08}

// MP4Sample is a sample of a MP4Track.
type MP4Sample struct {
	Delta     uint32
	CTSOffset int32
	NonSync   bool
	Payload   []byte
}

// MP4Edit is an edit list entry of a MP4Track.
type MP4Edit struct {
	SegmentDuration uint32
	MediaTime       int32
}

// MP4Track is a track of a MP4File.
type MP4Track struct {
	TrackID        uint32
	Handler        [4]byte
	Timescale      uint32
	Language       [3]byte
	AlternateGroup int16
	Edits          []MP4Edit
	Samples        []MP4Sample
}

func (t *MP4Track) duration() uint64 {
	var d uint64
	for _, sa := range t.Samples {
		d += uint64(sa.Delta)
	}
	return d
}

// MP4File is a progressive MP4 file with one chunk per track.
type MP4File struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands [][4]byte
	Timescale        uint32
	Tracks           []*MP4Track

	// raw content of moov/udta/meta/ilst
	Metadata []byte
}

type mp4Writer struct {
	buf seekablebuffer.Buffer
	w   *mp4.Writer
}

func (w *mp4Writer) start(box mp4.IImmutableBox) error {
	_, err := w.w.StartBox(&mp4.BoxInfo{Type: box.GetType()})
	if err != nil {
		return err
	}
	_, err = mp4.Marshal(w.w, box, mp4.Context{})
	return err
}

func (w *mp4Writer) end() error {
	_, err := w.w.EndBox()
	return err
}

func (w *mp4Writer) box(box mp4.IImmutableBox) error {
	err := w.start(box)
	if err != nil {
		return err
	}
	return w.end()
}

// Marshal encodes the file.
func (f *MP4File) Marshal() ([]byte, error) {
	w := &mp4Writer{}
	w.w = mp4.NewWriter(&w.buf)

	ftyp := &mp4.Ftyp{
		MajorBrand:   f.MajorBrand,
		MinorVersion: f.MinorVersion,
	}
	for _, b := range f.CompatibleBrands {
		ftyp.CompatibleBrands = append(ftyp.CompatibleBrands, mp4.CompatibleBrandElem{CompatibleBrand: b})
	}

	err := w.box(ftyp)
	if err != nil {
		return nil, err
	}

	err = w.start(&mp4.Mdat{})
	if err != nil {
		return nil, err
	}

	offsets := make([]uint32, len(f.Tracks))

	for i, track := range f.Tracks {
		offsets[i] = uint32(len(w.buf.Bytes()))

		for _, sa := range track.Samples {
			_, err = w.w.Write(sa.Payload)
			if err != nil {
				return nil, err
			}
		}
	}

	err = w.end()
	if err != nil {
		return nil, err
	}

	var movieDuration uint64
	for _, track := range f.Tracks {
		d := track.duration() * uint64(f.Timescale) / uint64(track.Timescale)
		if d > movieDuration {
			movieDuration = d
		}
	}

	err = w.start(&mp4.Moov{})
	if err != nil {
		return nil, err
	}

	err = w.box(&mp4.Mvhd{
		Timescale:   f.Timescale,
		DurationV0:  uint32(movieDuration),
		Rate:        65536,
		Volume:      256,
		Matrix:      [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000},
		NextTrackID: uint32(len(f.Tracks) + 1),
	})
	if err != nil {
		return nil, err
	}

	for i, track := range f.Tracks {
		err = f.marshalTrack(w, track, offsets[i])
		if err != nil {
			return nil, err
		}
	}

	if f.Metadata != nil {
		err = marshalMetadata(w, f.Metadata)
		if err != nil {
			return nil, err
		}
	}

	err = w.end()
	if err != nil {
		return nil, err
	}

	return w.buf.Bytes(), nil
}

func (f *MP4File) marshalTrack(w *mp4Writer, track *MP4Track, offset uint32) error {
	err := w.start(&mp4.Trak{})
	if err != nil {
		return err
	}

	err = w.box(&mp4.Tkhd{
		FullBox: mp4.FullBox{
			Flags: [3]byte{0, 0, 3},
		},
		TrackID:        track.TrackID,
		DurationV0:     uint32(track.duration() * uint64(f.Timescale) / uint64(track.Timescale)),
		AlternateGroup: track.AlternateGroup,
		Matrix:         [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000},
	})
	if err != nil {
		return err
	}

	if track.Edits != nil {
		elst := &mp4.Elst{
			EntryCount: uint32(len(track.Edits)),
		}
		for _, e := range track.Edits {
			elst.Entries = append(elst.Entries, mp4.ElstEntry{
				SegmentDurationV0: e.SegmentDuration,
				MediaTimeV0:       e.MediaTime,
				MediaRateInteger:  1,
			})
		}

		err = w.start(&mp4.Edts{})
		if err != nil {
			return err
		}

		err = w.box(elst)
		if err != nil {
			return err
		}

		err = w.end()
		if err != nil {
			return err
		}
	}

	err = w.start(&mp4.Mdia{})
	if err != nil {
		return err
	}

	err = w.box(&mp4.Mdhd{
		Timescale:  track.Timescale,
		DurationV0: uint32(track.duration()),
		Language:   track.Language,
	})
	if err != nil {
		return err
	}

	err = w.box(&mp4.Hdlr{
		HandlerType: track.Handler,
		Name:        "Handler",
	})
	if err != nil {
		return err
	}

	err = w.start(&mp4.Minf{})
	if err != nil {
		return err
	}

	if track.Handler == [4]byte{'s', 'o', 'u', 'n'} {
		err = w.box(&mp4.Smhd{})
	} else {
		err = w.box(&mp4.Vmhd{
			FullBox: mp4.FullBox{
				Flags: [3]byte{0, 0, 1},
			},
		})
	}
	if err != nil {
		return err
	}

	err = w.start(&mp4.Dinf{})
	if err != nil {
		return err
	}

	err = w.start(&mp4.Dref{
		EntryCount: 1,
	})
	if err != nil {
		return err
	}

	err = w.box(&mp4.Url{
		FullBox: mp4.FullBox{
			Flags: [3]byte{0, 0, 1},
		},
	})
	if err != nil {
		return err
	}

	err = w.end() // dref
	if err != nil {
		return err
	}

	err = w.end() // dinf
	if err != nil {
		return err
	}

	err = w.start(&mp4.Stbl{})
	if err != nil {
		return err
	}

	err = marshalSampleDescription(w, track.Handler)
	if err != nil {
		return err
	}

	err = marshalSampleTables(w, track, offset)
	if err != nil {
		return err
	}

	err = w.end() // stbl
	if err != nil {
		return err
	}

	err = w.end() // minf
	if err != nil {
		return err
	}

	err = w.end() // mdia
	if err != nil {
		return err
	}

	return w.end() // trak
}

func marshalSampleDescription(w *mp4Writer, handler [4]byte) error {
	err := w.start(&mp4.Stsd{
		EntryCount: 1,
	})
	if err != nil {
		return err
	}

	if handler == [4]byte{'s', 'o', 'u', 'n'} {
		err = w.start(&mp4.AudioSampleEntry{
			SampleEntry: mp4.SampleEntry{
				AnyTypeBox: mp4.AnyTypeBox{
					Type: mp4.BoxTypeOpus(),
				},
				DataReferenceIndex: 1,
			},
			ChannelCount: 2,
			SampleSize:   16,
			SampleRate:   48000 * 65536,
		})
		if err != nil {
			return err
		}

		err = w.box(&mp4.DOps{
			OutputChannelCount: 2,
			PreSkip:            312,
			InputSampleRate:    48000,
		})
		if err != nil {
			return err
		}
	} else {
		err = w.start(&mp4.VisualSampleEntry{
			SampleEntry: mp4.SampleEntry{
				AnyTypeBox: mp4.AnyTypeBox{
					Type: mp4.BoxTypeAvc1(),
				},
				DataReferenceIndex: 1,
			},
			Width:           1920,
			Height:          1080,
			Horizresolution: 4718592,
			Vertresolution:  4718592,
			FrameCount:      1,
			Depth:           24,
			PreDefined3:     -1,
		})
		if err != nil {
			return err
		}

		err = w.box(&mp4.AVCDecoderConfiguration{
			AnyTypeBox: mp4.AnyTypeBox{
				Type: mp4.BoxTypeAvcC(),
			},
			ConfigurationVersion:       1,
			Profile:                    SPS[1],
			ProfileCompatibility:       SPS[2],
			Level:                      SPS[3],
			LengthSizeMinusOne:         3,
			NumOfSequenceParameterSets: 1,
			SequenceParameterSets: []mp4.AVCParameterSet{{
				Length:  uint16(len(SPS)),
				NALUnit: SPS,
			}},
			NumOfPictureParameterSets: 1,
			PictureParameterSets: []mp4.AVCParameterSet{{
				Length:  uint16(len(PPS)),
				NALUnit: PPS,
			}},
		})
		if err != nil {
			return err
		}
	}

	err = w.end() // sample entry
	if err != nil {
		return err
	}

	return w.end() // stsd
}

func marshalSampleTables(w *mp4Writer, track *MP4Track, offset uint32) error {
	stts := &mp4.Stts{}
	ctts := &mp4.Ctts{
		FullBox: mp4.FullBox{Version: 1},
	}
	stss := &mp4.Stss{}
	stsz := &mp4.Stsz{
		SampleCount: uint32(len(track.Samples)),
	}
	hasCTTS := false

	for i, sa := range track.Samples {
		stts.Entries = append(stts.Entries, mp4.SttsEntry{
			SampleCount: 1,
			SampleDelta: sa.Delta,
		})
		ctts.Entries = append(ctts.Entries, mp4.CttsEntry{
			SampleCount:    1,
			SampleOffsetV1: sa.CTSOffset,
		})
		if sa.CTSOffset != 0 {
			hasCTTS = true
		}
		if !sa.NonSync {
			stss.SampleNumber = append(stss.SampleNumber, uint32(i+1))
		}
		stsz.EntrySize = append(stsz.EntrySize, uint32(len(sa.Payload)))
	}

	stts.EntryCount = uint32(len(stts.Entries))
	ctts.EntryCount = uint32(len(ctts.Entries))
	stss.EntryCount = uint32(len(stss.SampleNumber))

	err := w.box(stts)
	if err != nil {
		return err
	}

	if hasCTTS {
		err = w.box(ctts)
		if err != nil {
			return err
		}
	}

	err = w.box(stss)
	if err != nil {
		return err
	}

	stsc := &mp4.Stsc{}
	stco := &mp4.Stco{}
	if len(track.Samples) != 0 {
		stsc.EntryCount = 1
		stsc.Entries = []mp4.StscEntry{{
			FirstChunk:             1,
			SamplesPerChunk:        uint32(len(track.Samples)),
			SampleDescriptionIndex: 1,
		}}
		stco.EntryCount = 1
		stco.ChunkOffset = []uint32{offset}
	}

	err = w.box(stsc)
	if err != nil {
		return err
	}

	err = w.box(stsz)
	if err != nil {
		return err
	}

	return w.box(stco)
}

func marshalMetadata(w *mp4Writer, items []byte) error {
	err := w.start(&mp4.Udta{})
	if err != nil {
		return err
	}

	err = w.start(&mp4.Meta{})
	if err != nil {
		return err
	}

	err = w.box(&mp4.Hdlr{
		HandlerType: [4]byte{'m', 'd', 'i', 'r'},
	})
	if err != nil {
		return err
	}

	err = w.start(&mp4.Ilst{})
	if err != nil {
		return err
	}

	_, err = w.w.Write(items)
	if err != nil {
		return err
	}

	err = w.end() // ilst
	if err != nil {
		return err
	}

	err = w.end() // meta
	if err != nil {
		return err
	}

	return w.end() // udta
}

// MetadataItem returns a raw iTunes text item.
func MetadataItem(typ [4]byte, text string) []byte {
	dataSize := 16 + len(text)
	buf := make([]byte, 8+dataSize)

	binary.BigEndian.PutUint32(buf[0:], uint32(len(buf)))
	copy(buf[4:], typ[:])
	binary.BigEndian.PutUint32(buf[8:], uint32(dataSize))
	copy(buf[12:], "data")
	binary.BigEndian.PutUint32(buf[16:], 1) // UTF-8
	copy(buf[24:], text)

	return buf
}

// CreateTempMP4File writes a MP4 file into dir.
func CreateTempMP4File(dir string, f *MP4File) (string, error) {
	byts, err := f.Marshal()
	if err != nil {
		return "", err
	}
	return CreateTempFile(dir, byts)
}
