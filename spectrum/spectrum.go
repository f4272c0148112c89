package spectrum

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Metadata holds scalar annotations attached to a spectrum. Values are
// restricted to numbers, strings and booleans; nested structures are not
// supported.
type Metadata map[string]any

// Clone returns an independent copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Spectrum is a wavelength-sampled series of values with per-pixel errors.
//
// The three slices always have identical length and matching pixel order.
// Wavelengths are strictly increasing. The shape is fixed at construction;
// values may be mutated in place through [Spectrum.Scale] and friends.
type Spectrum struct {
	Wavelengths []float64
	Values      []float64
	Errors      []float64
	Metadata    Metadata

	rasterHash uint64
}

// New constructs a Spectrum and validates its shape invariants.
func New(wavelengths, values, errors []float64, meta Metadata) (*Spectrum, error) {
	if len(values) != len(wavelengths) {
		return nil, fmt.Errorf("spectrum: value/wavelength length mismatch: %d != %d", len(values), len(wavelengths))
	}
	if len(errors) != len(wavelengths) {
		return nil, fmt.Errorf("spectrum: error/wavelength length mismatch: %d != %d", len(errors), len(wavelengths))
	}
	for i := 1; i < len(wavelengths); i++ {
		if !(wavelengths[i] > wavelengths[i-1]) {
			return nil, fmt.Errorf("spectrum: wavelengths must be strictly increasing at index %d", i)
		}
	}

	return &Spectrum{
		Wavelengths: wavelengths,
		Values:      values,
		Errors:      errors,
		Metadata:    meta,
		rasterHash:  RasterHash(wavelengths),
	}, nil
}

// Len returns the number of pixels.
func (s *Spectrum) Len() int { return len(s.Wavelengths) }

// RasterHash returns the content hash of the wavelength raster, computed at
// construction time.
func (s *Spectrum) RasterHash() uint64 { return s.rasterHash }

// SameRaster reports whether both spectra are sampled on an identical grid.
func (s *Spectrum) SameRaster(o *Spectrum) bool {
	return o != nil && s.rasterHash == o.rasterHash
}

// Scale multiplies all values and errors by factor, in place.
func (s *Spectrum) Scale(factor float64) {
	if s.Len() == 0 {
		return
	}
	vecmath.ScaleBlock(s.Values, s.Values, factor)
	vecmath.ScaleBlock(s.Errors, s.Errors, factor)
}

// Divide returns s / o pixel-by-pixel on a shared raster. The result carries
// a clone of s's metadata; errors are propagated from s scaled by 1/o.
func (s *Spectrum) Divide(o *Spectrum) (*Spectrum, error) {
	if !s.SameRaster(o) {
		return nil, fmt.Errorf("spectrum: raster mismatch: %#x != %#x", s.rasterHash, o.RasterHash())
	}

	values := make([]float64, s.Len())
	errors := make([]float64, s.Len())
	for i := range values {
		values[i] = s.Values[i] / o.Values[i]
		errors[i] = s.Errors[i] / o.Values[i]
	}

	return &Spectrum{
		Wavelengths: s.Wavelengths,
		Values:      values,
		Errors:      errors,
		Metadata:    s.Metadata.Clone(),
		rasterHash:  s.rasterHash,
	}, nil
}

// Copy returns a deep copy of the spectrum, including metadata.
func (s *Spectrum) Copy() *Spectrum {
	out := &Spectrum{
		Wavelengths: append([]float64(nil), s.Wavelengths...),
		Values:      append([]float64(nil), s.Values...),
		Errors:      append([]float64(nil), s.Errors...),
		Metadata:    s.Metadata.Clone(),
		rasterHash:  s.rasterHash,
	}
	return out
}

// RasterHash computes a stable content hash of a wavelength raster.
//
// The hash covers the raw IEEE-754 bit patterns, so any single-sample change
// produces a different hash with overwhelming probability. NaN payloads are
// hashed as-is; rasters never legitimately contain NaN.
func RasterHash(wavelengths []float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, w := range wavelengths {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(w))
		h.Write(buf[:])
	}
	return h.Sum64()
}
