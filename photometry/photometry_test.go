package photometry

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/spectrum"
)

func TestABMagnitudeFlatSource(t *testing.T) {
	// A source flat in f-nu has, by construction, the same AB magnitude in
	// every band. Build f-lambda = c * fnu / lambda^2 for fnu giving mag 15.
	fnu := math.Pow(10, -0.4*(15-abZeroPoint))
	raster := testutil.LinearRaster(4000, 1, 5001)
	values := make([]float64, len(raster))
	for i, w := range raster {
		values[i] = fnu * speedOfLightAA / (w * w)
	}
	s, err := spectrum.New(raster, values, make([]float64, len(raster)), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, band := range []Band{SDSSg, SDSSr, SDSSi} {
		mag, err := ABMagnitude(s, band)
		if err != nil {
			t.Fatalf("ABMagnitude(%s): %v", band.Name, err)
		}
		if math.Abs(mag-15) > 1e-6 {
			t.Fatalf("band %s: mag=%f want=15", band.Name, mag)
		}
	}
}

func TestABMagnitudeScaling(t *testing.T) {
	s := testutil.FlatSpectrum(t, 5000, 1, 3001, 1e-16)

	mag1, err := ABMagnitude(s, SDSSr)
	if err != nil {
		t.Fatalf("ABMagnitude: %v", err)
	}

	// A factor 10 in flux is exactly -2.5 magnitudes.
	s.Scale(10)
	mag2, err := ABMagnitude(s, SDSSr)
	if err != nil {
		t.Fatalf("ABMagnitude: %v", err)
	}
	if math.Abs((mag1-mag2)-2.5) > 1e-9 {
		t.Fatalf("mag difference %f want 2.5", mag1-mag2)
	}
}

func TestABMagnitudeOutsideRaster(t *testing.T) {
	s := testutil.FlatSpectrum(t, 4000, 1, 100, 1e-16)
	if _, err := ABMagnitude(s, SDSSi); err == nil {
		t.Fatalf("expected error for band outside raster")
	}
}

func TestNormalizeToMagnitudeIdempotent(t *testing.T) {
	s := testutil.FlatSpectrum(t, 5000, 1, 3001, 3e-15)

	if _, err := NormalizeToMagnitude(s, SDSSr, 15, false); err != nil {
		t.Fatalf("NormalizeToMagnitude: %v", err)
	}

	mag, err := ABMagnitude(s, SDSSr)
	if err != nil {
		t.Fatalf("ABMagnitude: %v", err)
	}
	if math.Abs(mag-15) > 1e-9 {
		t.Fatalf("normalized magnitude %f want 15", mag)
	}

	// Renormalizing an already-normalized spectrum must not move the flux.
	before := append([]float64(nil), s.Values...)
	measured, err := NormalizeToMagnitude(s, SDSSr, 15, false)
	if err != nil {
		t.Fatalf("NormalizeToMagnitude: %v", err)
	}
	if math.Abs(measured-15) > 1e-9 {
		t.Fatalf("second pass measured %f want 15", measured)
	}
	testutil.RequireSliceNearlyEqual(t, s.Values, before, 1e-20)
}

func TestNormalizeFactorAtReference(t *testing.T) {
	if f := NormalizeFactor(15, 15); f != 1 {
		t.Fatalf("NormalizeFactor(15, 15)=%f want=1", f)
	}
	if f := NormalizeFactor(15, 17.5); math.Abs(f-10) > 1e-12 {
		t.Fatalf("NormalizeFactor(15, 17.5)=%f want=10", f)
	}
}

func TestNormalizeUnreddened(t *testing.T) {
	s := testutil.FlatSpectrum(t, 5000, 1, 3001, 1e-16)
	s.Metadata["A_SDSS_r"] = 0.5

	if _, err := NormalizeToMagnitude(s, SDSSr, 15, true); err != nil {
		t.Fatalf("NormalizeToMagnitude: %v", err)
	}

	// The unreddened magnitude lands on the reference, so the apparent
	// magnitude ends up fainter by exactly the reddening.
	mag, _ := ABMagnitude(s, SDSSr)
	if math.Abs(mag-15.5) > 1e-9 {
		t.Fatalf("apparent magnitude %f want 15.5", mag)
	}
}

func TestNormalizeUnreddenedMissingMetadata(t *testing.T) {
	s := testutil.FlatSpectrum(t, 5000, 1, 3001, 1e-16)
	if _, err := NormalizeToMagnitude(s, SDSSr, 15, true); err == nil {
		t.Fatalf("expected error for missing reddening metadata")
	}
}
