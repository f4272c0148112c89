package sim

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// BandData holds the per-arm columns of one simulator output file: the
// wavelength raster, the noisy realisation, the sky background, the
// integrated fluence used as a continuum-shape proxy, and the per-pixel SNR.
type BandData struct {
	Wavelengths []float64
	Realisation []float64
	Sky         []float64
	Fluence     []float64
	SNR         []float64
}

// Len returns the number of pixels in the band.
func (d *BandData) Len() int { return len(d.Wavelengths) }

// emptyBand is the placeholder for an arm whose SNR definition is unset:
// zero-length columns instead of a file read.
func emptyBand() *BandData {
	return &BandData{
		Wavelengths: []float64{},
		Realisation: []float64{},
		Sky:         []float64{},
		Fluence:     []float64{},
		SNR:         []float64{},
	}
}

// ReadBandFile parses a per-arm simulator output file: five whitespace
// delimited columns (wavelength, realisation, sky, fluence, SNR), with
// '#'-prefixed comment lines and blank lines ignored.
func ReadBandFile(path string) (*BandData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sim: open band file: %w", err)
	}
	defer f.Close()

	d := &BandData{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("sim: band file %s line %d: need 5 columns, got %d", path, lineNo, len(fields))
		}

		var values [5]float64
		for i := 0; i < 5; i++ {
			values[i], err = strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("sim: band file %s line %d: %w", path, lineNo, err)
			}
		}

		d.Wavelengths = append(d.Wavelengths, values[0])
		d.Realisation = append(d.Realisation, values[1])
		d.Sky = append(d.Sky, values[2])
		d.Fluence = append(d.Fluence, values[3])
		d.SNR = append(d.SNR, values[4])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sim: read band file %s: %w", path, err)
	}
	return d, nil
}

// WriteBandFile writes d in the simulator's per-arm output format. It is
// used by in-process simulator stubs and test fixtures.
func WriteBandFile(path string, d *BandData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim: create band file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# LAMBDA REALISATION SKY FLUENCE SNR")
	for i := range d.Wavelengths {
		fmt.Fprintf(w, "%.6f %.8e %.8e %.8e %.6f\n",
			d.Wavelengths[i], d.Realisation[i], d.Sky[i], d.Fluence[i], d.SNR[i])
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("sim: write band file: %w", err)
	}
	return f.Close()
}

// bandFileName names the per-arm output the simulator produces for one
// (object, mode, arm) combination.
func bandFileName(object string, mode Mode, band string) string {
	return fmt.Sprintf("specout_template_%s_%s_%s.dat", object, mode, band)
}
