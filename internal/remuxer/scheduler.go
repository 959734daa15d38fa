package remuxer

import (
	"errors"

	"code.cloudfoundry.org/bytefmt"

	"github.com/bluenviron/mp4remuxer/internal/container"
	"github.com/bluenviron/mp4remuxer/internal/logger"
)

type schedulerTrack struct {
	*mappedTrack
	sampleNumber uint32
	exhausted    bool
}

// scheduler moves samples from input tracks to output tracks.
// Tracks are visited in round robin. A sample is moved when its DTS
// is not ahead of the largest DTS moved so far, or when every active
// track has been skipped.
type scheduler struct {
	tracks         []*schedulerTrack
	sink           Sink
	progressPeriod int
	parent         logger.Writer

	cur              int
	largestDTS       float64
	consecutiveSkips int
	activeTracks     int
	transferred      uint64
	transferredBytes uint64
}

func (s *scheduler) initialize(tracks []*mappedTrack) {
	s.tracks = make([]*schedulerTrack, len(tracks))
	for i, t := range tracks {
		s.tracks[i] = &schedulerTrack{
			mappedTrack:  t,
			sampleNumber: 1,
		}
	}
	s.activeTracks = len(tracks)
}

func (s *scheduler) run() error {
	if s.activeTracks == 0 {
		return nil
	}

	for {
		done, err := s.step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// step visits the current track and moves the cursor.
// It returns true when every track has been drained.
func (s *scheduler) step() (bool, error) {
	t := s.tracks[s.cur]

	if !t.exhausted {
		dts, err := t.source.DTS(t.inTrackID, t.sampleNumber)

		switch {
		case errors.Is(err, container.ErrSampleNotFound):
			t.exhausted = true
			s.activeTracks--
			if s.activeTracks == 0 {
				return true, nil
			}

		case err != nil:
			return false, NewError(ErrorKindSource, "source %d, track %d: unable to get DTS of sample %d: %w",
				t.key.Source, t.key.Track, t.sampleNumber, err)

		default:
			secs := float64(dts) / float64(t.timescale)

			if secs <= s.largestDTS || s.consecutiveSkips >= s.activeTracks {
				err = s.transfer(t)
				if err != nil {
					return false, err
				}

				if secs > s.largestDTS {
					s.largestDTS = secs
				}
				s.consecutiveSkips = 0
			} else {
				s.consecutiveSkips++
			}
		}
	}

	s.cur = (s.cur + 1) % len(s.tracks)
	return false, nil
}

func (s *scheduler) transfer(t *schedulerTrack) error {
	sa, err := t.source.Sample(t.inTrackID, t.sampleNumber)
	if err != nil {
		return NewError(ErrorKindTransfer, "source %d, track %d: unable to get sample %d: %w",
			t.key.Source, t.key.Track, t.sampleNumber, err)
	}

	size := uint64(sa.Length())

	err = s.sink.AppendSample(t.outTrackID, sa)
	if err != nil {
		return NewError(ErrorKindTransfer, "unable to append sample %d of source %d, track %d: %w",
			t.sampleNumber, t.key.Source, t.key.Track, err)
	}

	t.sampleNumber++
	s.transferred++
	s.transferredBytes += size

	if s.progressPeriod > 0 && s.transferred%uint64(s.progressPeriod) == 0 {
		s.parent.Log(logger.Info, "importing: %d bytes (%s)",
			s.transferredBytes, bytefmt.ByteSize(s.transferredBytes))
	}

	return nil
}
