package spectrum

import "fmt"

// Array is a batch of spectra sharing one wavelength raster.
//
// Values and errors are stored as flat row-major matrices, so extracting a
// row yields a view into the backing storage rather than a copy.
type Array struct {
	Wavelengths []float64

	values []float64
	errors []float64
	rows   int
	pixels int

	rasterHash uint64
}

// NewArray allocates an Array of rows spectra on the given raster, with all
// values and errors zeroed.
func NewArray(wavelengths []float64, rows int) (*Array, error) {
	if rows < 0 {
		return nil, fmt.Errorf("spectrum: array row count must be >= 0: %d", rows)
	}
	for i := 1; i < len(wavelengths); i++ {
		if !(wavelengths[i] > wavelengths[i-1]) {
			return nil, fmt.Errorf("spectrum: wavelengths must be strictly increasing at index %d", i)
		}
	}

	pixels := len(wavelengths)
	return &Array{
		Wavelengths: wavelengths,
		values:      make([]float64, rows*pixels),
		errors:      make([]float64, rows*pixels),
		rows:        rows,
		pixels:      pixels,
		rasterHash:  RasterHash(wavelengths),
	}, nil
}

// Rows returns the number of spectra in the array.
func (a *Array) Rows() int { return a.rows }

// Pixels returns the raster length.
func (a *Array) Pixels() int { return a.pixels }

// RasterHash returns the content hash of the shared wavelength raster.
func (a *Array) RasterHash() uint64 { return a.rasterHash }

// SetRow copies one spectrum's values and errors into row i. The source
// spectrum must share the array's raster.
func (a *Array) SetRow(i int, s *Spectrum) error {
	if i < 0 || i >= a.rows {
		return fmt.Errorf("spectrum: array row index out of range: %d", i)
	}
	if s.RasterHash() != a.rasterHash {
		return fmt.Errorf("spectrum: raster mismatch: %#x != %#x", s.RasterHash(), a.rasterHash)
	}

	copy(a.values[i*a.pixels:(i+1)*a.pixels], s.Values)
	copy(a.errors[i*a.pixels:(i+1)*a.pixels], s.Errors)
	return nil
}

// Extract returns row i as a Spectrum view bound to the array's raster.
// No pixel data is copied; mutations through the view are visible in the
// array and vice versa.
func (a *Array) Extract(i int) (*Spectrum, error) {
	if i < 0 || i >= a.rows {
		return nil, fmt.Errorf("spectrum: array row index out of range: %d", i)
	}

	return &Spectrum{
		Wavelengths: a.Wavelengths,
		Values:      a.values[i*a.pixels : (i+1)*a.pixels : (i+1)*a.pixels],
		Errors:      a.errors[i*a.pixels : (i+1)*a.pixels : (i+1)*a.pixels],
		rasterHash:  a.rasterHash,
	}, nil
}
