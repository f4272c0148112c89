// Package resolution degrades spectra to a target resolving power by
// convolving the flux with a Gaussian line-spread function.
//
// The convolution runs in the frequency domain. The kernel FWHM follows the
// usual definition FWHM = mean(lambda) / R, converted to pixels using the
// raster step, so the input raster must be linear.
package resolution

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-spectro/spectrum"
)

// FWHM-to-sigma conversion for a Gaussian: 2*sqrt(2*ln 2).
const fwhmToSigma = 2.3548200450309493

const linearRasterEps = 1e-6

// FWHM returns the line-spread-function full width at half maximum, in the
// raster's wavelength unit, for the given resolving power.
func FWHM(wavelengths []float64, resolvingPower float64) float64 {
	return spectrum.Mean(wavelengths) / resolvingPower
}

// Degrade convolves flux with a Gaussian line-spread function so the output
// matches the given resolving power. The wavelength raster must be linear.
//
// The convolution zero-pads beyond the raster, so a few pixels at either
// edge are attenuated when the flux does not fall to zero there.
func Degrade(wavelengths, flux []float64, resolvingPower float64) ([]float64, error) {
	if len(flux) != len(wavelengths) {
		return nil, fmt.Errorf("resolution: flux/wavelength length mismatch: %d != %d", len(flux), len(wavelengths))
	}
	if len(flux) < 2 {
		return nil, fmt.Errorf("resolution: need at least 2 pixels: %d", len(flux))
	}
	if resolvingPower <= 0 {
		return nil, fmt.Errorf("resolution: resolving power must be > 0: %g", resolvingPower)
	}
	if !spectrum.IsLinear(wavelengths, linearRasterEps) {
		return nil, fmt.Errorf("resolution: wavelength raster is not linear")
	}

	step := wavelengths[1] - wavelengths[0]
	sigmaPixels := FWHM(wavelengths, resolvingPower) / fwhmToSigma / step
	if sigmaPixels < 1e-3 {
		// Kernel narrower than a millipixel: convolution is an identity.
		return append([]float64(nil), flux...), nil
	}

	kernel := gaussianKernel(sigmaPixels)
	return convolveSame(flux, kernel)
}

// gaussianKernel builds a unit-sum Gaussian of the given sigma in pixels,
// truncated at four sigma.
func gaussianKernel(sigmaPixels float64) []float64 {
	half := int(math.Ceil(4 * sigmaPixels))
	kernel := make([]float64, 2*half+1)

	sum := 0.0
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-x * x / (2 * sigmaPixels * sigmaPixels))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolveSame computes the central len(input) samples of input * kernel via
// a single FFT round trip. The kernel length must be odd.
func convolveSame(input, kernel []float64) ([]float64, error) {
	fftSize := nextPowerOf2(len(input) + len(kernel) - 1)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("resolution: failed to create FFT plan: %w", err)
	}

	inputPadded := make([]complex128, fftSize)
	for i, v := range input {
		inputPadded[i] = complex(v, 0)
	}
	kernelPadded := make([]complex128, fftSize)
	for i, v := range kernel {
		kernelPadded[i] = complex(v, 0)
	}

	if err := plan.Forward(inputPadded, inputPadded); err != nil {
		return nil, fmt.Errorf("resolution: forward FFT failed: %w", err)
	}
	if err := plan.Forward(kernelPadded, kernelPadded); err != nil {
		return nil, fmt.Errorf("resolution: forward FFT failed: %w", err)
	}

	for i := range inputPadded {
		inputPadded[i] *= kernelPadded[i]
	}

	if err := plan.Inverse(inputPadded, inputPadded); err != nil {
		return nil, fmt.Errorf("resolution: inverse FFT failed: %w", err)
	}

	// Centered slice of the full linear convolution.
	offset := (len(kernel) - 1) / 2
	out := make([]float64, len(input))
	for i := range out {
		out[i] = real(inputPadded[offset+i])
	}
	return out, nil
}

func nextPowerOf2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
