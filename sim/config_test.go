package sim

import (
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-spectro/photometry"
)

func applyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no modes", func(c *Config) { c.RunLRS, c.RunHRS = false, false }},
		{"empty SNR list", func(c *Config) { c.SNRList = nil }},
		{"wrong arm count", func(c *Config) { c.LRSArmDefinitions = []string{"MEDIANSNR"} }},
		{"cutovers not increasing", func(c *Config) { c.ArmCutovers = [2]float64{7031.7, 5327.7} }},
		{"unnamed definition", func(c *Config) {
			c.SNRDefinitions = append(c.SNRDefinitions, SNRDefinition{MinWavelength: 1, MaxWavelength: 2})
		}},
		{"empty window", func(c *Config) {
			c.SNRDefinitions = []SNRDefinition{{Name: "W", MinWavelength: 6000, MaxWavelength: 6000}}
			c.LRSArmDefinitions = []string{"W", "W", "W"}
			c.HRSArmDefinitions = []string{"W", "W", "W"}
		}},
		{"unknown arm reference", func(c *Config) {
			c.HRSArmDefinitions = []string{"MEDIANSNR", "NOWINDOW", "MEDIANSNR"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted invalid config")
			}
		})
	}
}

func TestValidateIgnoresDisabledMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunLRS = false
	cfg.LRSArmDefinitions = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode's arm definitions must not be checked: %v", err)
	}
}

func TestOptions(t *testing.T) {
	cfg := applyOptions(
		WithBinaryPath("/opt/etc/run"),
		WithTimeout(30*time.Second),
		WithMagnitude(13.5, true),
		WithPhotometricBand(photometry.SDSSi),
		WithSNRList(5, 15),
		WithSNRPerAngstrom(),
		WithModes(true, false),
		WithArmDefinitions(ModeLRS, "R", "G", "B"),
		WithArmCutovers(5000, 7000),
		WithResolution(20000, true),
		WithIdentifier("batch-7"),
		WithWorkRoot("/scratch"),
	)

	if cfg.BinaryPath != "/opt/etc/run" || cfg.Timeout != 30*time.Second {
		t.Fatalf("runner options not applied: %+v", cfg)
	}
	if cfg.Magnitude != 13.5 || !cfg.MagnitudeUnreddened {
		t.Fatalf("magnitude options not applied: %+v", cfg)
	}
	if cfg.PhotometricBand.Name != photometry.SDSSi.Name {
		t.Fatalf("band option not applied: %+v", cfg.PhotometricBand)
	}
	if len(cfg.SNRList) != 2 || cfg.SNRList[0] != 5 || cfg.SNRPerPixel {
		t.Fatalf("SNR options not applied: %+v", cfg)
	}
	if !cfg.RunLRS || cfg.RunHRS {
		t.Fatalf("mode option not applied: %+v", cfg)
	}
	if got := cfg.LRSArmDefinitions; got[0] != "R" || got[1] != "G" || got[2] != "B" {
		t.Fatalf("arm definition option not applied: %v", got)
	}
	if cfg.ArmCutovers != [2]float64{5000, 7000} {
		t.Fatalf("cutover option not applied: %v", cfg.ArmCutovers)
	}
	if cfg.Resolution != 20000 || !cfg.DegradeResolution {
		t.Fatalf("resolution option not applied: %+v", cfg)
	}
	if cfg.Identifier != "batch-7" || cfg.WorkRoot != "/scratch" {
		t.Fatalf("directory options not applied: %+v", cfg)
	}
}

func TestArmDefinitionsDisabledMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunHRS = false
	if defs := cfg.armDefinitions(ModeHRS); defs != nil {
		t.Fatalf("disabled mode returned definitions %v", defs)
	}
	if modes := cfg.enabledModes(); len(modes) != 1 || modes[0] != ModeLRS {
		t.Fatalf("enabledModes=%v", modes)
	}
}

func TestRuleListOutput(t *testing.T) {
	var b strings.Builder
	writeRuleList(&b, DefaultConfig())

	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count %d:\n%s", len(lines), b.String())
	}
	// Window bounds are converted from Angstrom to nm.
	want := "MEDIANSNR     SNR MEDIAN DIV   1.0  618.0 668.0 NM     1.0    PIX"
	if lines[1] != want {
		t.Fatalf("rule line:\ngot  %q\nwant %q", lines[1], want)
	}

	b.Reset()
	cfg := DefaultConfig()
	cfg.SNRPerPixel = false
	writeRuleList(&b, cfg)
	if !strings.Contains(b.String(), "    AA") {
		t.Fatalf("per-Angstrom unit missing:\n%s", b.String())
	}
}

func TestRuleSetOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SNRList = []float64{20, 50}

	var b strings.Builder
	writeRuleSet(&b, cfg)
	out := b.String()

	for _, want := range []string{
		"goodSNR20.0_MEDIANSNR  MEDIANSNR .GE. 20.0",
		"goodSNR50.0_MEDIANSNR  MEDIANSNR .GE. 50.0",
		"goodSNR250c            MEDIANSNR .GE. 250.0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing rule %q in:\n%s", want, out)
		}
	}
}

func TestParamFileOutput(t *testing.T) {
	var b strings.Builder
	writeParamFile(&b, DefaultConfig(), ModeHRS)
	out := b.String()

	for _, want := range []string{
		"SIM_MODE           = HRS",
		"OUTPUT_DIR         = outdir_HRS",
		"TARGET_MAG         = 14",
		"REFERENCE_MAG      = 15",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing parameter %q in:\n%s", want, out)
		}
	}
}
