package trackoption

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/mp4remuxer/internal/container"
)

func int16Ptr(v int16) *int16 {
	return &v
}

func languagePtr(code string) *container.Language {
	l, err := container.PackLanguage(code)
	if err != nil {
		panic(err)
	}
	return &l
}

func TestSplit(t *testing.T) {
	path, raw := Split("in.mp4?2:alternate-group=1?3:language=jpn")
	require.Equal(t, "in.mp4", path)
	require.Equal(t, "2:alternate-group=1?3:language=jpn", raw)

	path, raw = Split("in.mp4")
	require.Equal(t, "in.mp4", path)
	require.Equal(t, "", raw)
}

func TestParse(t *testing.T) {
	for _, ca := range []struct {
		name string
		raw  string
		dec  map[int]Override
	}{
		{
			"empty",
			"",
			map[int]Override{},
		},
		{
			"alternate group",
			"2:alternate-group=1",
			map[int]Override{
				2: {AlternateGroup: int16Ptr(1)},
			},
		},
		{
			"multiple options",
			"3:language=jpn,alternate-group=1",
			map[int]Override{
				3: {
					AlternateGroup: int16Ptr(1),
					Language:       languagePtr("jpn"),
				},
			},
		},
		{
			"multiple tracks",
			"1:language=eng?3:alternate-group=-2",
			map[int]Override{
				1: {Language: languagePtr("eng")},
				3: {AlternateGroup: int16Ptr(-2)},
			},
		},
		{
			"same track twice",
			"1:language=eng?1:language=ita",
			map[int]Override{
				1: {Language: languagePtr("ita")},
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			dec, err := Parse(ca.raw, 3)
			require.NoError(t, err)
			require.Equal(t, ca.dec, dec)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		raw  string
		err  error
		msg  string
	}{
		{
			"missing track number",
			"language=jpn",
			ErrMissingTrackNumber,
			"track number is not specified in 'language=jpn'",
		},
		{
			"empty track number",
			":language=jpn",
			ErrMissingTrackNumber,
			"track number is not specified in ':language=jpn'",
		},
		{
			"multiple colons",
			"2::x=1",
			ErrMultipleColons,
			"multiple colons inside one track option in '2::x=1'",
		},
		{
			"track number too big",
			"5:language=jpn",
			ErrInvalidTrackNumber,
			"invalid track number: '5'",
		},
		{
			"track number zero",
			"0:language=jpn",
			ErrInvalidTrackNumber,
			"invalid track number: '0'",
		},
		{
			"track number not a number",
			"a:language=jpn",
			ErrInvalidTrackNumber,
			"invalid track number: 'a'",
		},
		{
			"multiple equals",
			"1:language==jpn",
			ErrMultipleEquals,
			"multiple equal signs inside one track option in 'language==jpn'",
		},
		{
			"unknown option",
			"2:foo=1",
			ErrUnknownOption,
			"unknown track option: 'foo=1'",
		},
		{
			"invalid alternate group",
			"2:alternate-group=x",
			ErrInvalidValue,
			"invalid track option value: 'alternate-group=x'",
		},
		{
			"invalid language",
			"2:language=JP",
			ErrInvalidValue,
			"invalid track option value: 'language=JP'",
		},
		{
			"too many options",
			"1:language=eng?2:language=eng?3:language=eng?1:language=ita",
			ErrTooManyTrackOptions,
			"more track options specified than the number of tracks (3)",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			_, err := Parse(ca.raw, 3)
			require.ErrorIs(t, err, ca.err)
			require.EqualError(t, err, ca.msg)
		})
	}
}
