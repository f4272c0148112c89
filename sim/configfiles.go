package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Simulator input file names, fixed by the external binary's contract.
const (
	ruleListFileName     = "rulelist.txt"
	ruleSetFileName      = "ruleset.txt"
	templateListFileName = "template_list.txt"
)

const ruleListHeader = "#RULENAME     METRIC AGG  OPER FACTOR L_MIN L_MAX UNIT SCALE  RESOL\n"

// writeRuleList emits the noise-definition rule list: one line per SNR
// definition, with the window converted from Angstrom to nm and the SNR
// resolution quoted per pixel or per Angstrom.
func writeRuleList(w io.Writer, cfg Config) {
	io.WriteString(w, ruleListHeader)
	unit := "AA"
	if cfg.SNRPerPixel {
		unit = "PIX"
	}
	for _, def := range cfg.SNRDefinitions {
		fmt.Fprintf(w, "%-13s SNR MEDIAN DIV   1.0  %.1f %.1f NM     1.0    %s\n",
			def.Name, def.MinWavelength/10, def.MaxWavelength/10, unit)
	}
}

// writeRuleSet emits the rule-set file: one named target per (SNR, distinct
// SNR definition) combination, plus the single high-SNR continuum rule.
// Tags here must match the ones referenced by the manifest.
func writeRuleSet(w io.Writer, cfg Config) {
	io.WriteString(w, "#NAME                  REQUIRED_RULE\n")
	for _, snr := range cfg.SNRList {
		for _, def := range distinctDefinitions(cfg) {
			fmt.Fprintf(w, "%-22s %s .GE. %.1f\n", rulesetTag(snr, def), def, snr)
		}
	}
	if len(cfg.SNRDefinitions) > 0 {
		fmt.Fprintf(w, "%-22s %s .GE. %.1f\n",
			continuumRulesetTag(cfg), cfg.SNRDefinitions[0].Name, cfg.ContinuumSNR)
	}
}

// writeParamFile emits the per-mode simulator parameter file.
func writeParamFile(w io.Writer, cfg Config, mode Mode) {
	fmt.Fprintf(w, "SIM_MODE           = %s\n", mode)
	fmt.Fprintf(w, "TEMPLATE_LIST      = %s\n", templateListFileName)
	fmt.Fprintf(w, "RULE_LIST          = %s\n", ruleListFileName)
	fmt.Fprintf(w, "RULE_SET           = %s\n", ruleSetFileName)
	fmt.Fprintf(w, "OUTPUT_DIR         = %s\n", outputDirName(mode))
	fmt.Fprintf(w, "SUMMARY_FILE       = %s\n", summaryFileName)
	fmt.Fprintf(w, "TARGET_MAG         = %g\n", cfg.Magnitude)
	fmt.Fprintf(w, "REFERENCE_MAG      = %g\n", cfg.ReferenceMagnitude)
}

// writeConfigFile writes one simulator input file via emit.
func writeConfigFile(path string, emit func(io.Writer)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	emit(w)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("sim: write %s: %w", path, err)
	}
	return f.Close()
}
