package sim

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-spectro/photometry"
	"github.com/cwbudde/algo-spectro/resolution"
	"github.com/cwbudde/algo-spectro/spectrum"
)

// SourcePair couples a flux-calibrated input spectrum with its optional
// continuum-normalized companion. Both must share one wavelength raster.
type SourcePair struct {
	Flux      *spectrum.Spectrum
	Continuum *spectrum.Spectrum
}

// templateFileName names the simulator-ready file for a template id.
// The continuum-only variant carries a "_c" suffix.
func templateFileName(id int, continuumOnly bool) string {
	if continuumOnly {
		return fmt.Sprintf("template_%d_c.dat", id)
	}
	return fmt.Sprintf("template_%d.dat", id)
}

// WriteTemplate emits one simulator-ready template file.
//
// The emitted flux is the pair's raw flux, or flux divided by the
// continuum-normalized companion when continuumOnly is set (recovering the
// underlying continuum shape). Before emission the flux is rescaled so its
// synthetic magnitude in the configured band equals the reference magnitude.
// Non-linear input rasters are regridded, since the header encodes a linear
// wavelength solution.
func WriteTemplate(path string, pair SourcePair, continuumOnly bool, cfg Config) error {
	if pair.Flux == nil || pair.Flux.Len() < 2 {
		return fmt.Errorf("sim: template needs an input spectrum with at least 2 pixels")
	}
	if pair.Continuum != nil && !pair.Flux.SameRaster(pair.Continuum) {
		return fmt.Errorf("sim: continuum-normalised spectrum does not share the flux spectrum's wavelength raster")
	}
	if continuumOnly && pair.Continuum == nil {
		return fmt.Errorf("sim: continuum-only template requested without a continuum-normalised companion")
	}

	data := append([]float64(nil), pair.Flux.Values...)
	if continuumOnly {
		for i := range data {
			data[i] /= pair.Continuum.Values[i]
		}
	}

	work, err := spectrum.New(pair.Flux.Wavelengths, data,
		make([]float64, len(data)), pair.Flux.Metadata)
	if err != nil {
		return fmt.Errorf("sim: template spectrum: %w", err)
	}

	if !spectrum.IsLinear(work.Wavelengths, 1e-6) {
		n := work.Len()
		start := work.Wavelengths[0]
		step := (work.Wavelengths[n-1] - start) / float64(n-1)
		work, err = spectrum.Regrid(work, start, step, n)
		if err != nil {
			return fmt.Errorf("sim: regrid template raster: %w", err)
		}
	}

	if cfg.DegradeResolution && cfg.Resolution > 0 {
		degraded, err := resolution.Degrade(work.Wavelengths, work.Values, cfg.Resolution)
		if err != nil {
			return fmt.Errorf("sim: degrade template: %w", err)
		}
		copy(work.Values, degraded)
	}

	if _, err := photometry.NormalizeToMagnitude(work, cfg.PhotometricBand,
		cfg.ReferenceMagnitude, cfg.MagnitudeUnreddened); err != nil {
		return fmt.Errorf("sim: normalize template: %w", err)
	}

	return writeTemplateFile(path, work, cfg)
}

func writeTemplateFile(path string, s *spectrum.Spectrum, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim: create template file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# WAVELENGTH_MIN = %.6f\n", s.Wavelengths[0])
	fmt.Fprintf(w, "# WAVELENGTH_STEP = %.6f\n", s.Wavelengths[1]-s.Wavelengths[0])
	fmt.Fprintf(w, "# ABMAG = %.6f\n", cfg.ReferenceMagnitude)
	if cfg.Resolution > 0 {
		fmt.Fprintf(w, "# FWHM = %.6f\n", resolution.FWHM(s.Wavelengths, cfg.Resolution))
	}
	for _, v := range s.Values {
		fmt.Fprintf(w, "%.8e\n", v)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("sim: write template file: %w", err)
	}
	return f.Close()
}

// TemplateFile is the parsed form of an emitted template.
type TemplateFile struct {
	WavelengthMin  float64
	WavelengthStep float64
	ABMag          float64
	FWHM           float64
	Flux           []float64
}

// ReadTemplate parses a template file written by [WriteTemplate].
func ReadTemplate(path string) (*TemplateFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: open template file: %w", err)
	}
	defer f.Close()

	t := &TemplateFile{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := t.parseHeader(line); err != nil {
				return nil, err
			}
			continue
		}

		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("sim: malformed template flux line %q: %w", line, err)
		}
		t.Flux = append(t.Flux, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sim: read template file: %w", err)
	}
	return t, nil
}

func (t *TemplateFile) parseHeader(line string) error {
	fields := strings.SplitN(strings.TrimPrefix(line, "#"), "=", 2)
	if len(fields) != 2 {
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return fmt.Errorf("sim: malformed template header %q: %w", line, err)
	}

	switch strings.TrimSpace(fields[0]) {
	case "WAVELENGTH_MIN":
		t.WavelengthMin = value
	case "WAVELENGTH_STEP":
		t.WavelengthStep = value
	case "ABMAG":
		t.ABMag = value
	case "FWHM":
		t.FWHM = value
	}
	return nil
}
