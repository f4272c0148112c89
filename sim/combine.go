package sim

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-spectro/internal/metastore"
	"github.com/cwbudde/algo-spectro/spectrum"
)

// Arms in internal stitching order. Configured SNR definitions arrive in
// red, green, blue order and are reversed before indexing; the cutover
// logic below assumes blue, green, red.
var bands = [3]string{"blue", "green", "red"}

// Metadata keys the combiner attaches to every output spectrum. All other
// keys pass through from the originating spectrum untouched.
const (
	MetaContinuumNormalised = "continuum_normalised"
	MetaSNR                 = "SNR"
	MetaSNRPer              = "SNR_per"
	MetaMagnitude           = "magnitude"
	MetaExposure            = "exposure"
	MetaSNRDefinition       = "snr_definition"
)

// ResultKey addresses one stitched output: a template id and the target SNR
// it was degraded to.
type ResultKey struct {
	Template int
	SNR      float64
}

// ResultPair is the combiner's output for one key: a flux-calibrated
// spectrum, plus its continuum-normalized counterpart when a continuum-only
// exposure was available on disk.
type ResultPair struct {
	Flux                *spectrum.Spectrum
	ContinuumNormalised *spectrum.Spectrum
}

// Results maps (template, SNR) to stitched output spectra.
type Results map[ResultKey]ResultPair

// UnitError reports the failure of a single (template, SNR) unit. Other
// units of the same batch are unaffected.
type UnitError struct {
	Template int
	SNR      float64
	Band     string
	Err      error
}

func (e *UnitError) Error() string {
	if e.Band != "" {
		return fmt.Sprintf("sim: template %d SNR %.1f band %s: %v", e.Template, e.SNR, e.Band, e.Err)
	}
	return fmt.Sprintf("sim: template %d SNR %.1f: %v", e.Template, e.SNR, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Combine stitches the simulator's per-arm outputs in outDir into one
// spectrum per (template, SNR) pair, for every id in templateIDs.
//
// The run counter advances exactly once per (template, SNR) iteration, in
// template then SNR-list order, and is the sole join key to the exposure
// times in the run summary. A (template, SNR) unit whose required arm files
// are missing fails individually and is reported in the returned UnitError
// slice; a missing continuum-only output merely omits the
// continuum-normalized half of that unit's pair.
func Combine(cfg Config, store *metastore.Store, mode Mode, outDir string, templateIDs []int) (Results, []*UnitError, error) {
	armDefs := cfg.armDefinitions(mode)
	if len(armDefs) != 3 {
		return nil, nil, fmt.Errorf("sim: need three SNR definitions for the %s red, green and blue arms: got %d", mode, len(armDefs))
	}

	// Configured red, green, blue; indexed blue, green, red.
	defs := [3]string{armDefs[2], armDefs[1], armDefs[0]}

	exposures, err := readSummaryFile(outDir)
	if err != nil {
		return nil, nil, err
	}

	results := make(Results)
	var failures []*UnitError

	runCounter := 0
	for _, id := range templateIDs {
		meta, err := store.Lookup(id)
		if err != nil {
			return nil, nil, err
		}

		for _, snr := range cfg.SNRList {
			runCounter++

			pair, unitErr := combineOne(cfg, mode, outDir, id, snr, defs)
			if unitErr != nil {
				failures = append(failures, unitErr)
				continue
			}

			attachMetadata(pair, meta, cfg, snr, exposures, runCounter, defs)
			results[ResultKey{Template: id, SNR: snr}] = pair
		}
	}
	return results, failures, nil
}

// combineOne builds the stitched pair for a single (template, SNR) unit.
func combineOne(cfg Config, mode Mode, outDir string, id int, snr float64, defs [3]string) (ResultPair, *UnitError) {
	var arms [3]*BandData
	for j, band := range bands {
		if defs[j] == "" {
			arms[j] = emptyBand()
			continue
		}

		path := filepath.Join(outDir, bandFileName(objectName(id, snr, defs[j]), mode, band))
		data, err := ReadBandFile(path)
		if err != nil {
			return ResultPair{}, &UnitError{Template: id, SNR: snr, Band: band, Err: err}
		}
		arms[j] = data
	}

	var wavelengths, fluxes, snrs [3][]float64
	var fluences [3][]float64
	for j, arm := range arms {
		flux := make([]float64, arm.Len())
		for i := range flux {
			flux[i] = arm.Realisation[i] - arm.Sky[i]
		}

		wavelengths[j] = arm.Wavelengths
		fluxes[j] = flux
		fluences[j] = arm.Fluence
		snrs[j] = arm.SNR
	}

	// In low resolution the arms overlap in wavelength; cut each to a
	// disjoint window before concatenation.
	if mode == ModeLRS {
		for j := range arms {
			keep := cutoverRange(wavelengths[j], j, cfg.ArmCutovers)
			wavelengths[j] = wavelengths[j][keep[0]:keep[1]]
			fluxes[j] = fluxes[j][keep[0]:keep[1]]
			fluences[j] = fluences[j][keep[0]:keep[1]]
			snrs[j] = snrs[j][keep[0]:keep[1]]
		}
	}

	stitchedWavelengths := concat(wavelengths)
	stitchedFlux := concat(fluxes)
	stitchedSNR := concat(snrs)

	errors := make([]float64, len(stitchedFlux))
	for i := range errors {
		errors[i] = stitchedFlux[i] / stitchedSNR[i]
	}

	flux, err := spectrum.New(stitchedWavelengths, stitchedFlux, errors, nil)
	if err != nil {
		return ResultPair{}, &UnitError{Template: id, SNR: snr, Err: err}
	}

	normalised, unitErr := continuumNormalise(cfg, mode, outDir, id, snr, flux, fluences, stitchedSNR)
	if unitErr != nil {
		return ResultPair{}, unitErr
	}

	return ResultPair{Flux: flux, ContinuumNormalised: normalised}, nil
}

// continuumNormalise divides the stitched flux by the continuum-only
// exposure's stitched fluence, rescaled per arm to the signal fluence peak.
// A missing continuum output is not an error; it returns (nil, nil).
func continuumNormalise(cfg Config, mode Mode, outDir string, id int, snr float64, flux *spectrum.Spectrum, signalFluences [3][]float64, stitchedSNR []float64) (*spectrum.Spectrum, *UnitError) {
	var paths [3]string
	for j, band := range bands {
		paths[j] = filepath.Join(outDir, bandFileName(continuumObjectName(id), mode, band))
	}
	if _, err := os.Stat(paths[0]); err != nil {
		return nil, nil
	}

	var continuum []float64
	for j := range bands {
		data, err := ReadBandFile(paths[j])
		if err != nil {
			return nil, &UnitError{Template: id, SNR: snr, Band: bands[j], Err: err}
		}

		fluence := data.Fluence
		if mode == ModeLRS {
			keep := cutoverRange(data.Wavelengths, j, cfg.ArmCutovers)
			fluence = fluence[keep[0]:keep[1]]
		}

		// Arms with no signal contribution (unset SNR definition) are
		// skipped so both stitched series stay pixel-aligned.
		if len(signalFluences[j]) == 0 {
			continue
		}

		// The continuum run is normalized independently of the signal run;
		// rescale its fluence to the signal fluence peak per arm.
		scale := spectrum.Max(signalFluences[j]) / spectrum.Max(fluence)
		for _, v := range fluence {
			continuum = append(continuum, v*scale)
		}
	}

	if len(continuum) != flux.Len() {
		return nil, &UnitError{Template: id, SNR: snr,
			Err: fmt.Errorf("continuum pixel count %d does not match stitched flux %d", len(continuum), flux.Len())}
	}

	values := make([]float64, flux.Len())
	errors := make([]float64, flux.Len())
	for i := range values {
		v := flux.Values[i] / continuum[i]
		// Bad-pixel remediation: out-of-range continuum-normalized values
		// are zeroed and must be treated downstream as zero-weight.
		if v > 2.0 || v <= 0.0 {
			v = 0
		}
		values[i] = v
		errors[i] = v / stitchedSNR[i]
	}

	normalised, err := spectrum.New(flux.Wavelengths, values, errors, nil)
	if err != nil {
		return nil, &UnitError{Template: id, SNR: snr, Err: err}
	}
	return normalised, nil
}

// cutoverRange returns the [start, end) pixel window that arm j keeps in
// low-resolution stitching: blue keeps wavelengths <= the first cutover,
// green the half-open interval up to the second, red everything above it.
func cutoverRange(wavelengths []float64, arm int, cutovers [2]float64) [2]int {
	switch arm {
	case 0:
		end := len(wavelengths)
		for end > 0 && wavelengths[end-1] > cutovers[0] {
			end--
		}
		return [2]int{0, end}
	case 1:
		start := 0
		for start < len(wavelengths) && wavelengths[start] <= cutovers[0] {
			start++
		}
		end := len(wavelengths)
		for end > start && wavelengths[end-1] > cutovers[1] {
			end--
		}
		return [2]int{start, end}
	default:
		start := 0
		for start < len(wavelengths) && wavelengths[start] <= cutovers[1] {
			start++
		}
		return [2]int{start, len(wavelengths)}
	}
}

func concat(parts [3][]float64) []float64 {
	total := len(parts[0]) + len(parts[1]) + len(parts[2])
	out := make([]float64, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// attachMetadata reattaches the originating metadata plus the simulation
// settings to both halves of the pair. Each spectrum receives its own copy.
func attachMetadata(pair ResultPair, meta spectrum.Metadata, cfg Config, snr float64, exposures map[int]float64, runCounter int, defs [3]string) {
	out := meta.Clone()
	if out == nil {
		out = spectrum.Metadata{}
	}

	out[MetaContinuumNormalised] = 0
	out[MetaSNR] = snr
	if cfg.SNRPerPixel {
		out[MetaSNRPer] = "pixel"
	} else {
		out[MetaSNRPer] = "A"
	}
	out[MetaMagnitude] = cfg.Magnitude

	exposure, ok := exposures[runCounter]
	if !ok {
		exposure = math.NaN()
	}
	out[MetaExposure] = exposure

	if defs[0] == defs[1] && defs[1] == defs[2] {
		out[MetaSNRDefinition] = defs[0]
	} else {
		out[MetaSNRDefinition] = strings.Join(defs[:], ",")
	}

	pair.Flux.Metadata = out

	if pair.ContinuumNormalised != nil {
		normalisedMeta := out.Clone()
		normalisedMeta[MetaContinuumNormalised] = 1
		pair.ContinuumNormalised.Metadata = normalisedMeta
	}
}
