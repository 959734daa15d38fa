package remuxer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/mp4remuxer/internal/test"
)

func newTestScheduler(t *testing.T, sources []*fakeSource) (*scheduler, *fakeSink) {
	srcs := make([]Source, len(sources))
	for i, src := range sources {
		srcs[i] = src
	}

	sink := &fakeSink{}

	m := &trackMapper{
		sources: srcs,
		sink:    sink,
	}
	require.NoError(t, m.prepare())
	require.NoError(t, m.create())

	s := &scheduler{
		sink:   sink,
		parent: test.NilLogger,
	}
	s.initialize(m.tracks)

	return s, sink
}

func TestSchedulerScenario(t *testing.T) {
	s, sink := newTestScheduler(t, []*fakeSource{
		{tracks: []*fakeTrack{newFakeTrack(1, 0, 1, 2)}},
		{tracks: []*fakeTrack{newFakeTrack(1, 0, 2)}},
	})

	require.NoError(t, s.run())

	// the second sample of the second source is moved by the escape valve
	// before the third sample of the first source.
	require.Equal(t, []appendEvent{
		{trackID: 1, dts: 0},
		{trackID: 2, dts: 0},
		{trackID: 1, dts: 1},
		{trackID: 2, dts: 2},
		{trackID: 1, dts: 2},
	}, sink.events)
}

func TestSchedulerInvariants(t *testing.T) {
	videoDTS := make([]uint64, 30)
	for i := range videoDTS {
		videoDTS[i] = uint64(i) * 3000
	}

	audioDTS := make([]uint64, 50)
	for i := range audioDTS {
		audioDTS[i] = uint64(i) * 1024
	}

	for _, ca := range []struct {
		name    string
		sources []*fakeSource
	}{
		{
			"scenario",
			[]*fakeSource{
				{tracks: []*fakeTrack{newFakeTrack(1, 0, 1, 2)}},
				{tracks: []*fakeTrack{newFakeTrack(1, 0, 2)}},
			},
		},
		{
			"different timescales",
			[]*fakeSource{
				{tracks: []*fakeTrack{
					newFakeTrack(90000, videoDTS...),
					newFakeTrack(48000, audioDTS...),
				}},
				{tracks: []*fakeTrack{
					newFakeTrack(1000, 0, 5000, 100000),
				}},
			},
		},
		{
			"zero length tracks",
			[]*fakeSource{
				{tracks: []*fakeTrack{
					newFakeTrack(1000),
					newFakeTrack(1000, 0, 10, 20),
				}},
				{},
				{tracks: []*fakeTrack{
					newFakeTrack(1000),
				}},
			},
		},
		{
			"all tracks ahead",
			[]*fakeSource{
				{tracks: []*fakeTrack{
					newFakeTrack(1, 100, 200),
					newFakeTrack(1, 50, 300, 301),
					newFakeTrack(1, 1000),
				}},
				{tracks: []*fakeTrack{
					newFakeTrack(2, 7),
					newFakeTrack(10, 10000, 10001, 10002),
				}},
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			s, sink := newTestScheduler(t, ca.sources)

			prevDTS := 0.0
			steps := 0

			for {
				steps++
				require.Less(t, steps, 10000)

				done, err := s.step()
				require.NoError(t, err)
				if done {
					break
				}

				require.LessOrEqual(t, s.consecutiveSkips, s.activeTracks)
				require.GreaterOrEqual(t, s.largestDTS, prevDTS)
				prevDTS = s.largestDTS
			}

			require.Equal(t, 0, s.activeTracks)

			i := 0
			for _, src := range ca.sources {
				for _, track := range src.tracks {
					out := sink.tracks[i]
					i++

					require.Len(t, out.samples, len(track.dts))
					for j, sa := range out.samples {
						require.Equal(t, track.dts[j], sa.DTS)
					}

					for n := 1; n <= len(track.dts); n++ {
						require.Equal(t, 1, track.fetched[uint32(n)])
					}
				}
			}
		})
	}
}

func TestSchedulerNoTracks(t *testing.T) {
	s, sink := newTestScheduler(t, []*fakeSource{{}, {}})
	require.NoError(t, s.run())
	require.Empty(t, sink.events)
}

func TestSchedulerErrors(t *testing.T) {
	t.Run("dts", func(t *testing.T) {
		src := &fakeSource{tracks: []*fakeTrack{newFakeTrack(1, 0)}}
		s, _ := newTestScheduler(t, []*fakeSource{src})
		src.dtsErr = fmt.Errorf("read error")

		err := s.run()
		var e *Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, ErrorKindSource, e.Kind)
		require.EqualError(t, err, "source error: source 1, track 1: unable to get DTS of sample 1: read error")
	})

	t.Run("append", func(t *testing.T) {
		s, sink := newTestScheduler(t, []*fakeSource{
			{tracks: []*fakeTrack{newFakeTrack(1, 0)}},
		})
		sink.appendErr = fmt.Errorf("disk full")

		err := s.run()
		var e *Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, ErrorKindTransfer, e.Kind)
		require.EqualError(t, err, "transfer error: unable to append sample 1 of source 1, track 1: disk full")
	})
}
