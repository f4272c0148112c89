// Package spectrum provides the wavelength-sampled data model shared by the
// whole module: single spectra, batched spectrum arrays on a common raster,
// and the raster-hash precondition used before any pixel-wise operation.
//
// A Spectrum couples three equal-length slices (wavelengths, values, value
// errors) with a scalar metadata map. Two spectra may only be combined,
// divided or compared pixel-by-pixel when their raster hashes match; the
// hash is a cheap content hash of the wavelength slice, so equality of
// hashes implies (with overwhelming probability) an identical sampling grid.
package spectrum
