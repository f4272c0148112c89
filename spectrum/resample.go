package spectrum

import (
	"fmt"
	"sort"
)

// IsLinear reports whether the raster has a uniform pixel step within eps
// (relative tolerance on the first step). Rasters with fewer than two pixels
// count as linear.
func IsLinear(wavelengths []float64, eps float64) bool {
	if len(wavelengths) < 2 {
		return true
	}

	step := wavelengths[1] - wavelengths[0]
	for i := 2; i < len(wavelengths); i++ {
		if !NearlyEqual(wavelengths[i]-wavelengths[i-1], step, eps) {
			return false
		}
	}
	return true
}

// Regrid resamples s onto a linear raster starting at start with the given
// pixel step, using piecewise-linear interpolation. Query points outside the
// input raster clamp to the nearest endpoint value.
func Regrid(s *Spectrum, start, step float64, pixels int) (*Spectrum, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("spectrum: cannot regrid an empty spectrum")
	}
	if step <= 0 {
		return nil, fmt.Errorf("spectrum: regrid step must be > 0: %g", step)
	}

	raster := make([]float64, pixels)
	for i := range raster {
		raster[i] = start + float64(i)*step
	}

	values := interpolateLinear(s.Wavelengths, s.Values, raster)
	errors := interpolateLinear(s.Wavelengths, s.Errors, raster)

	return New(raster, values, errors, s.Metadata.Clone())
}

// interpolateLinear performs piecewise-linear interpolation at queryX.
// x is strictly increasing with the same length as y, which holds for any
// raster that passed Spectrum construction.
func interpolateLinear(x, y, queryX []float64) []float64 {
	out := make([]float64, len(queryX))
	for i, q := range queryX {
		if q <= x[0] {
			out[i] = y[0]
			continue
		}
		if q >= x[len(x)-1] {
			out[i] = y[len(y)-1]
			continue
		}

		j := sort.SearchFloat64s(x, q)
		x0, x1 := x[j-1], x[j]
		t := (q - x0) / (x1 - x0)
		out[i] = y[j-1] + t*(y[j]-y[j-1])
	}
	return out
}
