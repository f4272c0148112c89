// Command specsim simulates spectrograph observations of synthetic stellar
// spectra and reconstructs one stitched spectrum per wavelength-arm set.
//
// Usage:
//
//	specsim [flags] spectrum-file ...
//
// Each input file holds two or three whitespace-separated columns:
// wavelength (Angstrom), flux, and an optional flux error. A file named
// like the input with a "_cn" suffix before the extension is picked up as
// its continuum-normalized companion.
//
// Examples:
//
//	specsim -binary /opt/etc/4FS_ETC -snr 20,50 -mode lrs star1.dat
//	specsim -binary /opt/etc/4FS_ETC -mag 13.5 -out results star*.dat
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/algo-spectro/photometry"
	"github.com/cwbudde/algo-spectro/sim"
	"github.com/cwbudde/algo-spectro/spectrum"
)

var bandRegistry = map[string]photometry.Band{
	"SDSS_g": photometry.SDSSg,
	"SDSS_r": photometry.SDSSr,
	"SDSS_i": photometry.SDSSi,
}

func main() {
	binary := flag.String("binary", "", "path to the exposure-time-calculator binary (required)")
	mag := flag.Float64("mag", 14, "target apparent magnitude")
	unreddened := flag.Bool("unreddened", false, "treat the target magnitude as unreddened")
	bandName := flag.String("band", "SDSS_r", "photometric band (SDSS_g, SDSS_r, SDSS_i)")
	snrList := flag.String("snr", "", "comma-separated target SNR values (default: survey list)")
	perAngstrom := flag.Bool("per-angstrom", false, "quote SNR per Angstrom instead of per pixel")
	mode := flag.String("mode", "both", "instrument mode: lrs, hrs or both")
	res := flag.Float64("resolution", 50000, "template resolving power (0 to omit)")
	degrade := flag.Bool("degrade", false, "convolve templates down to the resolving power")
	timeout := flag.Duration("timeout", 0, "simulator invocation timeout (0 = none)")
	identifier := flag.String("id", "specsim", "working-directory identifier")
	outDir := flag.String("out", ".", "directory for stitched output spectra")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: specsim [flags] spectrum-file ...\n\n")
		fmt.Fprintf(os.Stderr, "Simulates spectrograph observations and stitches the instrument arms\n")
		fmt.Fprintf(os.Stderr, "back into one spectrum per (input, SNR) pair.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*binary, *mag, *unreddened, *bandName, *snrList, *perAngstrom,
		*mode, *res, *degrade, *timeout, *identifier, *outDir, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(binary string, mag float64, unreddened bool, bandName, snrList string,
	perAngstrom bool, mode string, res float64, degrade bool,
	timeout time.Duration, identifier, outDir string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no input spectrum files")
	}
	if binary == "" {
		return fmt.Errorf("-binary is required")
	}

	band, ok := bandRegistry[bandName]
	if !ok {
		return fmt.Errorf("unknown photometric band %q", bandName)
	}

	opts := []sim.Option{
		sim.WithBinaryPath(binary),
		sim.WithMagnitude(mag, unreddened),
		sim.WithPhotometricBand(band),
		sim.WithResolution(res, degrade),
		sim.WithTimeout(timeout),
		sim.WithIdentifier(identifier),
	}
	switch strings.ToLower(mode) {
	case "lrs":
		opts = append(opts, sim.WithModes(true, false))
	case "hrs":
		opts = append(opts, sim.WithModes(false, true))
	case "both":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if snrList != "" {
		snrs, err := parseSNRList(snrList)
		if err != nil {
			return err
		}
		opts = append(opts, sim.WithSNRList(snrs...))
	}
	if perAngstrom {
		opts = append(opts, sim.WithSNRPerAngstrom())
	}

	pairs, err := loadPairs(files)
	if err != nil {
		return err
	}

	pipeline, err := sim.New(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	output, err := pipeline.Process(context.Background(), pairs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return report(os.Stdout, output, outDir)
}

func parseSNRList(list string) ([]float64, error) {
	var snrs []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed SNR list entry %q", field)
		}
		snrs = append(snrs, v)
	}
	return snrs, nil
}

// loadPairs reads each input file and, when present, its "_cn" companion.
func loadPairs(files []string) ([]sim.SourcePair, error) {
	pairs := make([]sim.SourcePair, 0, len(files))
	for _, file := range files {
		flux, err := readSpectrumFile(file)
		if err != nil {
			return nil, err
		}
		flux.Metadata["Starname"] = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

		pair := sim.SourcePair{Flux: flux}
		if companion := companionName(file); companion != "" {
			if _, err := os.Stat(companion); err == nil {
				pair.Continuum, err = readSpectrumFile(companion)
				if err != nil {
					return nil, err
				}
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func companionName(file string) string {
	ext := filepath.Ext(file)
	return strings.TrimSuffix(file, ext) + "_cn" + ext
}

func readSpectrumFile(path string) (*spectrum.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var wavelengths, values, errors []float64
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: need at least 2 columns", path, lineNo)
		}

		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		e := 0.0
		if len(fields) > 2 {
			if e, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
			}
		}

		wavelengths = append(wavelengths, w)
		values = append(values, v)
		errors = append(errors, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return spectrum.New(wavelengths, values, errors, spectrum.Metadata{})
}

func writeSpectrumFile(path string, s *spectrum.Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, key := range []string{sim.MetaSNR, sim.MetaExposure, sim.MetaSNRDefinition} {
		if v, ok := s.Metadata[key]; ok {
			fmt.Fprintf(w, "# %s = %v\n", key, v)
		}
	}
	for i := range s.Wavelengths {
		fmt.Fprintf(w, "%.6f %.8e %.8e\n", s.Wavelengths[i], s.Values[i], s.Errors[i])
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func report(out *os.File, output map[sim.Mode]*sim.ModeOutput, outDir string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tTEMPLATE\tSNR\tEXPOSURE[s]\tPIXELS\tCONTINUUM\tFILE")

	for _, mode := range []sim.Mode{sim.ModeLRS, sim.ModeHRS} {
		mo, ok := output[mode]
		if !ok {
			continue
		}

		keys := make([]sim.ResultKey, 0, len(mo.Results))
		for key := range mo.Results {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].Template != keys[j].Template {
				return keys[i].Template < keys[j].Template
			}
			return keys[i].SNR < keys[j].SNR
		})

		for _, key := range keys {
			pair := mo.Results[key]
			name := fmt.Sprintf("template_%d_SNR%.1f_%s.dat", key.Template, key.SNR, mode)
			if err := writeSpectrumFile(filepath.Join(outDir, name), pair.Flux); err != nil {
				return err
			}

			hasContinuum := "no"
			if pair.ContinuumNormalised != nil {
				hasContinuum = "yes"
				cnName := strings.TrimSuffix(name, ".dat") + "_cn.dat"
				if err := writeSpectrumFile(filepath.Join(outDir, cnName), pair.ContinuumNormalised); err != nil {
					return err
				}
			}

			fmt.Fprintf(w, "%s\t%d\t%.1f\t%v\t%d\t%s\t%s\n",
				mode, key.Template, key.SNR, pair.Flux.Metadata[sim.MetaExposure],
				pair.Flux.Len(), hasContinuum, name)
		}

		for _, failure := range mo.Failures {
			fmt.Fprintf(os.Stderr, "warning: %v\n", failure)
		}
	}
	return w.Flush()
}
