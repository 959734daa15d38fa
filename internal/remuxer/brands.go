package remuxer

import (
	"github.com/bluenviron/mp4remuxer/internal/container"
)

type majorBrand struct {
	brand        container.Brand
	minorVersion uint32
}

// SelectBrands picks the major brand used by most movies and
// the union of their compatible brands.
// Ties are resolved in favor of the brand that comes first.
func SelectBrands(movies []container.MovieParams) container.MovieParams {
	var ret container.MovieParams

	var order []majorBrand
	counts := make(map[majorBrand]int)

	for _, movie := range movies {
		key := majorBrand{
			brand:        movie.MajorBrand,
			minorVersion: movie.MinorVersion,
		}
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}

	best := 0
	for _, key := range order {
		if counts[key] > best {
			best = counts[key]
			ret.MajorBrand = key.brand
			ret.MinorVersion = key.minorVersion
		}
	}

	seen := make(map[container.Brand]struct{})

	for _, movie := range movies {
		for _, b := range movie.CompatibleBrands {
			if b == (container.Brand{}) {
				continue
			}
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			ret.CompatibleBrands = append(ret.CompatibleBrands, b)
		}
	}

	return ret
}
