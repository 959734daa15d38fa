package container

import (
	"github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
)

// mp4Writer builds a box tree in memory.
type mp4Writer struct {
	buf seekablebuffer.Buffer
	w   *mp4.Writer
}

func newMP4Writer() *mp4Writer {
	w := &mp4Writer{}
	w.w = mp4.NewWriter(&w.buf)
	return w
}

func (w *mp4Writer) writeBoxStart(box mp4.IImmutableBox) (int, error) {
	bi := &mp4.BoxInfo{
		Type: box.GetType(),
	}
	var err error
	bi, err = w.w.StartBox(bi)
	if err != nil {
		return 0, err
	}

	_, err = mp4.Marshal(w.w, box, mp4.Context{})
	if err != nil {
		return 0, err
	}

	return int(bi.Offset), nil
}

func (w *mp4Writer) writeBoxEnd() error {
	_, err := w.w.EndBox()
	return err
}

func (w *mp4Writer) writeBox(box mp4.IImmutableBox) (int, error) {
	off, err := w.writeBoxStart(box)
	if err != nil {
		return 0, err
	}

	err = w.writeBoxEnd()
	if err != nil {
		return 0, err
	}

	return off, nil
}

// writeRaw writes an already serialized box.
func (w *mp4Writer) writeRaw(byts []byte) error {
	_, err := w.w.Write(byts)
	return err
}

func (w *mp4Writer) bytes() []byte {
	return w.buf.Bytes()
}
