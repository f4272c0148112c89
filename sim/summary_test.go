package sim

import (
	"math"
	"strings"
	"testing"
)

func TestParseSummary(t *testing.T) {
	input := strings.Join([]string{
		"# RUN  PROG  OBJECT  RULESET  TARG  TEXP  REST",
		"1 etc template_0_SNR20.0_MEDIANSNR goodSNR20.0_MEDIANSNR 15.0 120.5 ok",
		"2 etc template_0_SNR50.0_MEDIANSNR goodSNR50.0_MEDIANSNR 15.0 nan ok",
		"3 etc short_line 1.0",
		"not-a-run etc object ruleset 15.0 60.0 ok",
		"",
		"4 etc template_1_SNR20.0_MEDIANSNR goodSNR20.0_MEDIANSNR 15.0 bogus ok",
		"5 etc template_1_SNR50.0_MEDIANSNR goodSNR50.0_MEDIANSNR 15.0 901.25 ok",
	}, "\n")

	exposures, err := ParseSummary(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSummary: %v", err)
	}

	if got := exposures[1]; got != 120.5 {
		t.Fatalf("run 1 exposure %f want 120.5", got)
	}
	if got, ok := exposures[2]; !ok || !math.IsNaN(got) {
		t.Fatalf("run 2 exposure %f want NaN", got)
	}
	if _, ok := exposures[3]; ok {
		t.Fatalf("short line should be skipped")
	}
	if _, ok := exposures[4]; ok {
		t.Fatalf("unparseable exposure should be skipped")
	}
	if got := exposures[5]; got != 901.25 {
		t.Fatalf("run 5 exposure %f want 901.25", got)
	}
	if len(exposures) != 3 {
		t.Fatalf("unexpected entry count %d: %v", len(exposures), exposures)
	}
}
