package container

import (
	"encoding/binary"
	"fmt"
)

// Finalize writes pending samples and the movie header.
// When MoveHeaderToFront is enabled, media data is moved forward
// and the movie header is written before it. progress is called
// after every moved buffer and can be nil.
func (o *Output) Finalize(progress ProgressFunc) error {
	err := o.checkWritable()
	if err != nil {
		return err
	}

	for _, track := range o.tracks {
		err = o.writeChunk(track)
		if err != nil {
			return err
		}
	}

	if !o.headerWritten {
		err = o.writeHeader()
		if err != nil {
			return err
		}
	}

	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(o.pos-o.mdatStart))
	_, err = o.f.WriteAt(hdr[:], o.mdatStart+8)
	if err != nil {
		return err
	}

	if o.conf.MoveHeaderToFront {
		err = o.finalizeFront(progress)
	} else {
		err = o.finalizeBack()
	}
	if err != nil {
		return err
	}

	o.finalized = true
	return nil
}

func (o *Output) marshalMoov(shift int64) ([]byte, error) {
	m := &moovMarshaler{
		movie:  o.movie,
		tracks: o.tracks,
		shift:  shift,
	}
	return m.marshal(o.metadata)
}

func (o *Output) finalizeBack() error {
	moov, err := o.marshalMoov(0)
	if err != nil {
		return err
	}

	_, err = o.f.WriteAt(moov, o.pos)
	if err != nil {
		return err
	}

	return o.f.Truncate(o.pos + int64(len(moov)))
}

func (o *Output) finalizeFront(progress ProgressFunc) error {
	// the size of moov depends on the chunk offsets, which depend on the size of moov.
	var moov []byte
	shift := int64(0)

	for i := 0; ; i++ {
		if i == 4 {
			return fmt.Errorf("unable to compute the size of the movie header")
		}

		var err error
		moov, err = o.marshalMoov(shift)
		if err != nil {
			return err
		}

		if int64(len(moov)) == shift {
			break
		}
		shift = int64(len(moov))
	}

	err := o.moveForward(o.mdatStart, o.pos, shift, progress)
	if err != nil {
		return err
	}

	_, err = o.f.WriteAt(moov, o.mdatStart)
	if err != nil {
		return err
	}

	return o.f.Truncate(o.pos + shift)
}

// moveForward moves the byte range [start, end) forward by shift bytes,
// starting from the end so that data is never overwritten before being read.
func (o *Output) moveForward(start int64, end int64, shift int64, progress ProgressFunc) error {
	total := uint64(end - start)
	buf := make([]byte, o.conf.FinalizeBufferSize)
	written := uint64(0)
	pos := end

	for pos > start {
		n := int64(len(buf))
		if pos-start < n {
			n = pos - start
		}
		pos -= n

		_, err := o.f.ReadAt(buf[:n], pos)
		if err != nil {
			return err
		}

		_, err = o.f.WriteAt(buf[:n], pos+shift)
		if err != nil {
			return err
		}

		written += uint64(n)
		if progress != nil {
			progress(written, total)
		}
	}

	return nil
}
