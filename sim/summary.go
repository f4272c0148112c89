package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// summaryFileName is the run summary the simulator writes into each mode's
// output directory.
const summaryFileName = "ETC_summary.txt"

// ParseSummary extracts the per-run exposure times from a simulator run
// summary: whitespace-delimited columns with the run number in column 1 and
// the exposure time in seconds in column 6.
//
// Lines with fewer than six fields, a non-integer run number, or an
// unparseable exposure column are skipped rather than treated as fatal; a
// literal "nan" exposure parses to NaN.
func ParseSummary(r io.Reader) (map[int]float64, error) {
	exposures := make(map[int]float64)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}

		run, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		exposure, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			continue
		}
		exposures[run] = exposure
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sim: read run summary: %w", err)
	}
	return exposures, nil
}

// readSummaryFile parses the summary in outDir. A missing or unreadable
// summary is fatal for the whole mode: without it no exposure time can be
// recovered for any run.
func readSummaryFile(outDir string) (map[int]float64, error) {
	f, err := os.Open(filepath.Join(outDir, summaryFileName))
	if err != nil {
		return nil, fmt.Errorf("sim: open run summary: %w", err)
	}
	defer f.Close()

	return ParseSummary(f)
}
