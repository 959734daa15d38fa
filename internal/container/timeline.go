package container

import (
	"fmt"

	"github.com/abema/go-mp4"
)

type sampleTables struct {
	stts *mp4.Stts
	ctts *mp4.Ctts
	stss *mp4.Stss
	stsc *mp4.Stsc
	stsz *mp4.Stsz
	stco *mp4.Stco
	co64 *mp4.Co64
}

func (t *sampleTables) set(box mp4.IBox) {
	switch box := box.(type) {
	case *mp4.Stts:
		t.stts = box
	case *mp4.Ctts:
		t.ctts = box
	case *mp4.Stss:
		t.stss = box
	case *mp4.Stsc:
		t.stsc = box
	case *mp4.Stsz:
		t.stsz = box
	case *mp4.Stco:
		t.stco = box
	case *mp4.Co64:
		t.co64 = box
	}
}

func (t *sampleTables) chunkOffsets() ([]uint64, error) {
	switch {
	case t.stco != nil:
		ret := make([]uint64, len(t.stco.ChunkOffset))
		for i, v := range t.stco.ChunkOffset {
			ret[i] = uint64(v)
		}
		return ret, nil

	case t.co64 != nil:
		return t.co64.ChunkOffset, nil
	}

	return nil, fmt.Errorf("chunk offset box not found")
}

type timelineSample struct {
	dts                    uint64
	ctsOffset              int64
	delta                  uint32
	offset                 uint64
	size                   uint32
	isSync                 bool
	sampleDescriptionIndex uint32
}

type timeline struct {
	samples []timelineSample
}

// build expands the sample tables into a per-sample timeline.
func (t *sampleTables) build() (*timeline, error) {
	if t.stts == nil || t.stsc == nil || t.stsz == nil {
		return nil, fmt.Errorf("sample table is incomplete")
	}

	sampleCount := int(t.stsz.SampleCount)

	// counts are checked before allocating.
	sttsCount := uint64(0)
	for _, e := range t.stts.Entries {
		sttsCount += uint64(e.SampleCount)
	}
	if sttsCount > uint64(sampleCount) {
		return nil, fmt.Errorf("stts describes more samples than stsz")
	}
	if sttsCount != uint64(sampleCount) {
		return nil, fmt.Errorf("stts describes %d samples, expected %d", sttsCount, sampleCount)
	}
	if t.stsz.SampleSize == 0 && len(t.stsz.EntrySize) != sampleCount {
		return nil, fmt.Errorf("stsz contains %d entries, expected %d", len(t.stsz.EntrySize), sampleCount)
	}

	samples := make([]timelineSample, sampleCount)

	// sizes
	for i := range samples {
		if t.stsz.SampleSize != 0 {
			samples[i].size = t.stsz.SampleSize
		} else {
			samples[i].size = t.stsz.EntrySize[i]
		}
	}

	// decode timestamps
	pos := 0
	dts := uint64(0)
	for _, e := range t.stts.Entries {
		for j := uint32(0); j < e.SampleCount; j++ {
			samples[pos].dts = dts
			samples[pos].delta = e.SampleDelta
			dts += uint64(e.SampleDelta)
			pos++
		}
	}

	// composition offsets
	if t.ctts != nil {
		pos = 0
		for _, e := range t.ctts.Entries {
			off := int64(int32(e.SampleOffsetV0))
			if t.ctts.Version == 1 {
				off = int64(e.SampleOffsetV1)
			}

			for j := uint32(0); j < e.SampleCount && pos < sampleCount; j++ {
				samples[pos].ctsOffset = off
				pos++
			}
		}
	}

	// sync samples
	if t.stss == nil {
		for i := range samples {
			samples[i].isSync = true
		}
	} else {
		for _, n := range t.stss.SampleNumber {
			if n == 0 || int(n) > sampleCount {
				return nil, fmt.Errorf("invalid sync sample number %d", n)
			}
			samples[n-1].isSync = true
		}
	}

	// offsets
	chunkOffsets, err := t.chunkOffsets()
	if err != nil {
		return nil, err
	}

	pos = 0
	entries := t.stsc.Entries
	for i, e := range entries {
		if e.FirstChunk == 0 {
			return nil, fmt.Errorf("invalid stsc entry")
		}

		lastChunk := uint32(len(chunkOffsets))
		if i < len(entries)-1 {
			lastChunk = entries[i+1].FirstChunk - 1
		}

		for chunk := e.FirstChunk; chunk <= lastChunk; chunk++ {
			if int(chunk) > len(chunkOffsets) {
				return nil, fmt.Errorf("stsc refers to a chunk that does not exist")
			}

			off := chunkOffsets[chunk-1]
			for j := uint32(0); j < e.SamplesPerChunk; j++ {
				if pos >= sampleCount {
					return nil, fmt.Errorf("stsc describes more samples than stsz")
				}
				samples[pos].offset = off
				samples[pos].sampleDescriptionIndex = e.SampleDescriptionIndex
				off += uint64(samples[pos].size)
				pos++
			}
		}
	}
	if pos != sampleCount {
		return nil, fmt.Errorf("stsc describes %d samples, expected %d", pos, sampleCount)
	}

	return &timeline{samples: samples}, nil
}

func (tl *timeline) sample(sampleNumber uint32) (*timelineSample, error) {
	if sampleNumber == 0 {
		return nil, fmt.Errorf("invalid sample number 0")
	}
	if int(sampleNumber) > len(tl.samples) {
		return nil, ErrSampleNotFound
	}
	return &tl.samples[sampleNumber-1], nil
}

func (tl *timeline) lastSampleDelta() uint32 {
	if len(tl.samples) == 0 {
		return 0
	}
	return tl.samples[len(tl.samples)-1].delta
}
