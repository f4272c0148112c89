// Package testutil provides shared test assertions and spectrum fixtures.
package testutil

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spectro/spectrum"
)

// LinearRaster builds a linear wavelength raster of n pixels.
func LinearRaster(start, step float64, n int) []float64 {
	raster := make([]float64, n)
	for i := range raster {
		raster[i] = start + float64(i)*step
	}
	return raster
}

// FlatSpectrum builds a constant-flux spectrum on a linear raster.
func FlatSpectrum(t *testing.T, start, step float64, n int, flux float64) *spectrum.Spectrum {
	t.Helper()

	values := make([]float64, n)
	for i := range values {
		values[i] = flux
	}

	s, err := spectrum.New(LinearRaster(start, step, n), values, make([]float64, n), spectrum.Metadata{})
	if err != nil {
		t.Fatalf("FlatSpectrum: %v", err)
	}
	return s
}

// AbsorptionSpectrum builds a flat continuum with Gaussian absorption lines
// at the given wavelengths, plus its continuum-normalized companion on the
// same raster. Line depth is 0.5 of the continuum, sigma is 2 pixel steps.
func AbsorptionSpectrum(t *testing.T, start, step float64, n int, continuum float64, lines ...float64) (flux, normalised *spectrum.Spectrum) {
	t.Helper()

	raster := LinearRaster(start, step, n)
	norm := make([]float64, n)
	values := make([]float64, n)
	sigma := 2 * step

	for i, w := range raster {
		depth := 0.0
		for _, line := range lines {
			d := w - line
			depth += 0.5 * math.Exp(-d*d/(2*sigma*sigma))
		}
		if depth > 0.99 {
			depth = 0.99
		}
		norm[i] = 1 - depth
		values[i] = continuum * norm[i]
	}

	flux, err := spectrum.New(raster, values, make([]float64, n), spectrum.Metadata{"Starname": "fixture"})
	if err != nil {
		t.Fatalf("AbsorptionSpectrum: %v", err)
	}
	normalised, err = spectrum.New(raster, norm, make([]float64, n), spectrum.Metadata{})
	if err != nil {
		t.Fatalf("AbsorptionSpectrum: %v", err)
	}
	return flux, normalised
}
