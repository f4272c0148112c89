package sim

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-spectro/internal/testutil"
)

// fabricateOutputs returns a stub Runner that plays the external simulator:
// it parses the template list and leaves plausible per-arm outputs and a run
// summary behind, numbering runs in manifest order of the non-continuum
// lines with exposure 100 + 10*run.
func fabricateOutputs(t *testing.T) RunnerFunc {
	t.Helper()
	return func(ctx context.Context, workDir string, mode Mode) error {
		data, err := os.ReadFile(filepath.Join(workDir, templateListFileName))
		if err != nil {
			return err
		}
		outDir := filepath.Join(workDir, outputDirName(mode))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		var summary []string
		run := 0
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) < 3 || strings.HasPrefix(fields[0], "#") {
				continue
			}
			object := fields[0]
			if strings.HasSuffix(object, "_c") {
				writeStubUnit(t, outDir, object, mode, 0, 0, 1.0)
				continue
			}
			run++
			writeStubUnit(t, outDir, object, mode, 2.0, 0.5, 3.0)
			summary = append(summary,
				fmt.Sprintf("%d etc %s %s 15.0 %.1f", run, object, fields[2], 100+10*float64(run)))
		}

		content := strings.Join(summary, "\n") + "\n"
		return os.WriteFile(filepath.Join(outDir, summaryFileName), []byte(content), 0o644)
	}
}

func writeStubUnit(t *testing.T, outDir, object string, mode Mode, realisation, sky, fluence float64) {
	t.Helper()
	writeArm(t, outDir, object, mode, "blue", makeBand(4500, 1, 5, realisation, sky, fluence, 10))
	writeArm(t, outDir, object, mode, "green", makeBand(5500, 1, 5, realisation, sky, fluence, 10))
	writeArm(t, outDir, object, mode, "red", makeBand(6500, 1, 5, realisation, sky, fluence, 10))
}

func pipelineInput(t *testing.T, withContinuum bool) SourcePair {
	t.Helper()
	flux := testutil.FlatSpectrum(t, 5000, 1, 3001, 4e-15)
	flux.Metadata["Starname"] = "unit-a"
	flux.Metadata["Teff"] = 5777.0
	pair := SourcePair{Flux: flux}
	if withContinuum {
		pair.Continuum = testutil.FlatSpectrum(t, 5000, 1, 3001, 1.0)
	}
	return pair
}

func TestPipelineRoundTrip(t *testing.T) {
	p, err := New(
		WithWorkRoot(t.TempDir()),
		WithIdentifier("roundtrip"),
		WithModes(false, true),
		WithSNRList(20, 50),
		WithRunner(fabricateOutputs(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	for _, name := range []string{ruleListFileName, ruleSetFileName, paramFileName(ModeHRS), metastoreFileName} {
		if _, err := os.Stat(filepath.Join(p.WorkDir(), name)); err != nil {
			t.Fatalf("missing simulator input %s: %v", name, err)
		}
	}

	output, err := p.Process(context.Background(), []SourcePair{pipelineInput(t, true)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	hrs, ok := output[ModeHRS]
	if !ok || len(output) != 1 {
		t.Fatalf("mode outputs %v want HRS only", output)
	}
	if len(hrs.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", hrs.Failures)
	}
	if len(hrs.Results) != 2 {
		t.Fatalf("result count %d want 2", len(hrs.Results))
	}

	for i, snr := range []float64{20, 50} {
		pair, ok := hrs.Results[ResultKey{Template: 0, SNR: snr}]
		if !ok {
			t.Fatalf("missing result for SNR %.0f", snr)
		}
		if pair.Flux.Len() != 15 || pair.ContinuumNormalised.Len() != 15 {
			t.Fatalf("SNR %.0f pixel counts %d/%d want 15", snr,
				pair.Flux.Len(), pair.ContinuumNormalised.Len())
		}
		for j := range pair.Flux.Values {
			if math.Abs(pair.Flux.Values[j]-1.5) > 1e-7 {
				t.Fatalf("flux[%d]=%f want 1.5", j, pair.Flux.Values[j])
			}
			if math.Abs(pair.ContinuumNormalised.Values[j]-0.5) > 1e-7 {
				t.Fatalf("normalized[%d]=%f want 0.5", j, pair.ContinuumNormalised.Values[j])
			}
		}

		meta := pair.Flux.Metadata
		if meta[MetaSNR] != snr {
			t.Fatalf("SNR metadata %v want %.0f", meta[MetaSNR], snr)
		}
		wantExposure := 100 + 10*float64(i+1)
		if meta[MetaExposure] != wantExposure {
			t.Fatalf("SNR %.0f exposure %v want %.0f", snr, meta[MetaExposure], wantExposure)
		}
		// Input metadata survives the disk round trip through the store.
		if meta["Teff"] != 5777.0 || meta["Starname"] != "unit-a" {
			t.Fatalf("input metadata lost: %v", meta)
		}
		if pair.ContinuumNormalised.Metadata[MetaContinuumNormalised] != 1 {
			t.Fatalf("continuum flag missing: %v", pair.ContinuumNormalised.Metadata)
		}
	}
}

func TestPipelineWithoutContinuumCompanion(t *testing.T) {
	p, err := New(
		WithWorkRoot(t.TempDir()),
		WithIdentifier("nocontinuum"),
		WithModes(false, true),
		WithSNRList(20),
		WithRunner(fabricateOutputs(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	output, err := p.Process(context.Background(), []SourcePair{pipelineInput(t, false)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	pair := output[ModeHRS].Results[ResultKey{Template: 0, SNR: 20}]
	if pair.Flux == nil {
		t.Fatalf("missing flux output")
	}
	if pair.ContinuumNormalised != nil {
		t.Fatalf("continuum output without a continuum companion")
	}
}

func TestPipelineWorkingDirectoryIsExclusive(t *testing.T) {
	root := t.TempDir()
	opts := []Option{
		WithWorkRoot(root),
		WithIdentifier("exclusive"),
		WithModes(false, true),
		WithRunner(fabricateOutputs(t)),
	}

	first, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()

	if _, err := New(opts...); err == nil {
		t.Fatalf("second pipeline on the same working directory must fail")
	}
}

func TestPipelineCloseRemovesWorkingDirectory(t *testing.T) {
	p, err := New(
		WithWorkRoot(t.TempDir()),
		WithIdentifier("close"),
		WithModes(false, true),
		WithRunner(fabricateOutputs(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	workDir := p.WorkDir()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("working directory still present after Close: %v", err)
	}
}

func TestPipelineSimulatorFailureAborts(t *testing.T) {
	failing := RunnerFunc(func(ctx context.Context, workDir string, mode Mode) error {
		return fmt.Errorf("exit status 1")
	})

	p, err := New(
		WithWorkRoot(t.TempDir()),
		WithIdentifier("failing"),
		WithModes(false, true),
		WithRunner(failing),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, err := p.Process(context.Background(), []SourcePair{pipelineInput(t, false)}); err == nil {
		t.Fatalf("simulator failure must abort the invocation")
	}
}

func TestPipelineEmptyBatch(t *testing.T) {
	p, err := New(
		WithWorkRoot(t.TempDir()),
		WithIdentifier("empty"),
		WithModes(false, true),
		WithRunner(fabricateOutputs(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty input batch")
	}
}
