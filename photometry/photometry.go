// Package photometry computes synthetic AB magnitudes of spectra in tophat
// photometric bands and derives the scale factors used to renormalize
// templates to a common reference magnitude.
package photometry

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-spectro/spectrum"
)

// Speed of light in Angstrom per second, for f-lambda to f-nu conversion.
const speedOfLightAA = 2.99792458e18

// AB magnitude zero point for f-nu in erg/s/cm^2/Hz.
const abZeroPoint = -48.60

// Band is a tophat photometric passband over a wavelength window in
// Angstrom.
type Band struct {
	Name          string
	MinWavelength float64
	MaxWavelength float64
}

// Approximate tophat equivalents of common survey bands.
var (
	SDSSg = Band{Name: "SDSS_g", MinWavelength: 4000, MaxWavelength: 5500}
	SDSSr = Band{Name: "SDSS_r", MinWavelength: 5500, MaxWavelength: 7000}
	SDSSi = Band{Name: "SDSS_i", MinWavelength: 7000, MaxWavelength: 8500}
)

// ABMagnitude computes the synthetic AB magnitude of a spectrum in band.
// Spectrum values are interpreted as f-lambda in erg/s/cm^2/Angstrom.
//
// The band must overlap the spectrum's raster in at least two pixels.
func ABMagnitude(s *spectrum.Spectrum, band Band) (float64, error) {
	if band.MaxWavelength <= band.MinWavelength {
		return 0, fmt.Errorf("photometry: band %q has empty wavelength window", band.Name)
	}

	lo, hi := -1, -1
	for i, w := range s.Wavelengths {
		if w < band.MinWavelength {
			continue
		}
		if w > band.MaxWavelength {
			break
		}
		if lo < 0 {
			lo = i
		}
		hi = i
	}
	if lo < 0 || hi-lo < 1 {
		return 0, fmt.Errorf("photometry: band %q [%g, %g] does not overlap spectrum raster",
			band.Name, band.MinWavelength, band.MaxWavelength)
	}

	// Trapezoid integration of f-nu = f-lambda * lambda^2 / c over the band,
	// divided by the bandwidth covered, giving the mean flux density.
	var integral, width float64
	for i := lo; i < hi; i++ {
		w0, w1 := s.Wavelengths[i], s.Wavelengths[i+1]
		f0 := s.Values[i] * w0 * w0 / speedOfLightAA
		f1 := s.Values[i+1] * w1 * w1 / speedOfLightAA
		integral += 0.5 * (f0 + f1) * (w1 - w0)
		width += w1 - w0
	}

	mean := integral / width
	if !(mean > 0) {
		return 0, fmt.Errorf("photometry: non-positive mean flux %g in band %q", mean, band.Name)
	}

	return -2.5*math.Log10(mean) + abZeroPoint, nil
}

// NormalizeFactor returns the multiplicative flux scale that moves a
// spectrum of the given magnitude to the reference magnitude.
//
// Rescaling by this factor is idempotent: a spectrum already at the
// reference magnitude gets a factor of exactly 1.
func NormalizeFactor(referenceMagnitude, magnitude float64) float64 {
	return math.Pow(10, -0.4*(referenceMagnitude-magnitude))
}

// NormalizeToMagnitude rescales flux in place so its synthetic magnitude in
// band equals referenceMagnitude, and returns the magnitude measured before
// scaling.
//
// When unreddened is true, the band reddening recorded in the spectrum
// metadata under "A_<band name>" is subtracted from the measured magnitude
// first, so the normalization targets the unreddened brightness.
func NormalizeToMagnitude(s *spectrum.Spectrum, band Band, referenceMagnitude float64, unreddened bool) (float64, error) {
	mag, err := ABMagnitude(s, band)
	if err != nil {
		return 0, err
	}

	if unreddened {
		key := "A_" + band.Name
		reddening, ok := metadataFloat(s.Metadata, key)
		if !ok {
			return 0, fmt.Errorf("photometry: unreddened normalization needs metadata key %q", key)
		}
		mag -= reddening
	}

	factor := NormalizeFactor(referenceMagnitude, mag)
	vecmath.ScaleBlock(s.Values, s.Values, factor)
	vecmath.ScaleBlock(s.Errors, s.Errors, factor)
	return mag, nil
}

func metadataFloat(m spectrum.Metadata, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
