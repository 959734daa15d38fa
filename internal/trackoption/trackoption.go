// Package trackoption contains the parser of per-track options.
package trackoption

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bluenviron/mp4remuxer/internal/container"
)

// errors.
var (
	ErrMissingTrackNumber  = errors.New("track number is not specified")
	ErrMultipleColons      = errors.New("multiple colons inside one track option")
	ErrInvalidTrackNumber  = errors.New("invalid track number")
	ErrMultipleEquals      = errors.New("multiple equal signs inside one track option")
	ErrUnknownOption       = errors.New("unknown track option")
	ErrInvalidValue        = errors.New("invalid track option value")
	ErrTooManyTrackOptions = errors.New("more track options specified than the number of tracks")
)

// Override contains the parameters that replace the ones of an input track.
// A nil field keeps the value of the input track.
type Override struct {
	AlternateGroup *int16
	Language       *container.Language
}

// Split splits an input argument into path and raw track options.
func Split(arg string) (string, string) {
	path, raw, _ := strings.Cut(arg, "?")
	return path, raw
}

// Parse parses the track options of a source with numTracks tracks.
// The syntax is track:option,option?track:option...
// Returned overrides are indexed by 1-based track number.
func Parse(raw string, numTracks int) (map[int]Override, error) {
	ret := make(map[int]Override)

	if raw == "" {
		return ret, nil
	}

	segments := strings.Split(raw, "?")
	if len(segments) > numTracks {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyTrackOptions, numTracks)
	}

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		err := parseSegment(segment, numTracks, ret)
		if err != nil {
			return nil, err
		}
	}

	return ret, nil
}

func parseSegment(segment string, numTracks int, ret map[int]Override) error {
	parts := strings.Split(segment, ":")

	switch {
	case len(parts) < 2 || parts[0] == "":
		return fmt.Errorf("%w in '%s'", ErrMissingTrackNumber, segment)

	case len(parts) > 2:
		return fmt.Errorf("%w in '%s'", ErrMultipleColons, segment)
	}

	trackNumber, err := strconv.Atoi(parts[0])
	if err != nil || trackNumber <= 0 || trackNumber > numTracks {
		return fmt.Errorf("%w: '%s'", ErrInvalidTrackNumber, parts[0])
	}

	ov := ret[trackNumber]

	for _, opt := range strings.Split(parts[1], ",") {
		if opt == "" {
			continue
		}

		if strings.Count(opt, "=") > 1 {
			return fmt.Errorf("%w in '%s'", ErrMultipleEquals, opt)
		}

		key, value, _ := strings.Cut(opt, "=")

		switch key {
		case "alternate-group":
			v, err := strconv.ParseInt(value, 10, 16)
			if err != nil {
				return fmt.Errorf("%w: '%s'", ErrInvalidValue, opt)
			}
			v2 := int16(v)
			ov.AlternateGroup = &v2

		case "language":
			l, err := container.PackLanguage(value)
			if err != nil {
				return fmt.Errorf("%w: '%s'", ErrInvalidValue, opt)
			}
			ov.Language = &l

		default:
			return fmt.Errorf("%w: '%s'", ErrUnknownOption, opt)
		}
	}

	ret[trackNumber] = ov
	return nil
}
