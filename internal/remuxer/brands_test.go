package remuxer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/mp4remuxer/internal/container"
)

var (
	brandA = container.Brand{'i', 's', 'o', 'm'}
	brandB = container.Brand{'m', 'p', '4', '2'}
	brandX = container.Brand{'a', 'v', 'c', '1'}
	brandY = container.Brand{'i', 's', 'o', '2'}
	brandZ = container.Brand{'m', 'p', '4', '1'}
)

func TestSelectBrands(t *testing.T) {
	for _, ca := range []struct {
		name   string
		movies []container.MovieParams
		out    container.MovieParams
	}{
		{
			"empty",
			nil,
			container.MovieParams{},
		},
		{
			"majority",
			[]container.MovieParams{
				{MajorBrand: brandB, MinorVersion: 1},
				{MajorBrand: brandA},
				{MajorBrand: brandA},
				{MajorBrand: brandB, MinorVersion: 1},
				{MajorBrand: brandA},
			},
			container.MovieParams{
				MajorBrand: brandA,
			},
		},
		{
			"tie",
			[]container.MovieParams{
				{MajorBrand: brandA},
				{MajorBrand: brandB},
				{MajorBrand: brandB},
				{MajorBrand: brandA},
			},
			container.MovieParams{
				MajorBrand: brandA,
			},
		},
		{
			"minor version",
			[]container.MovieParams{
				{MajorBrand: brandA, MinorVersion: 1},
				{MajorBrand: brandA, MinorVersion: 2},
				{MajorBrand: brandA, MinorVersion: 2},
			},
			container.MovieParams{
				MajorBrand:   brandA,
				MinorVersion: 2,
			},
		},
		{
			"compatible brands",
			[]container.MovieParams{
				{MajorBrand: brandA, CompatibleBrands: []container.Brand{brandX, brandY}},
				{MajorBrand: brandA, CompatibleBrands: []container.Brand{brandY, {}, brandZ, brandX}},
			},
			container.MovieParams{
				MajorBrand:       brandA,
				CompatibleBrands: []container.Brand{brandX, brandY, brandZ},
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			require.Equal(t, ca.out, SelectBrands(ca.movies))
		})
	}
}
