package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-spectro/internal/metastore"
)

const metastoreFileName = "metadata.db"

// ModeOutput is one instrument mode's combined result: the stitched spectra
// plus the per-unit failures that did not abort the batch.
type ModeOutput struct {
	Results  Results
	Failures []*UnitError
}

// Pipeline runs the full simulation round trip: template generation,
// manifest construction, external simulator invocation per enabled mode,
// and arm recombination.
//
// All state lives in an exclusive working directory namespaced by process
// id and the configured identifier; no two instances may share one.
// Stages execute strictly sequentially. The pipeline is not safe for
// concurrent use; run separate instances with distinct identifiers instead.
type Pipeline struct {
	cfg     Config
	runner  Runner
	store   *metastore.Store
	builder *ManifestBuilder
	workDir string
	log     *slog.Logger
}

// New creates a pipeline with its working directory, metadata store and
// simulator input files (rule list, rule set, per-mode parameter files).
// Creation fails if the working directory already exists.
func New(opts ...Option) (*Pipeline, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	workDir := filepath.Join(workRoot, fmt.Sprintf("spectro_%d_%s", os.Getpid(), cfg.Identifier))
	if err := os.Mkdir(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("sim: create exclusive working directory: %w", err)
	}

	store, err := metastore.Open(filepath.Join(workDir, metastoreFileName))
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	builder, err := NewManifestBuilder(cfg, store)
	if err != nil {
		store.Close()
		os.RemoveAll(workDir)
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		runner:  cfg.Runner,
		store:   store,
		builder: builder,
		workDir: workDir,
		log:     slog.Default().With("component", "sim", "workdir", workDir),
	}
	if p.runner == nil {
		p.runner = &ExecRunner{BinaryPath: cfg.BinaryPath, Timeout: cfg.Timeout}
	}

	if err := p.writeSimulatorInputs(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) writeSimulatorInputs() error {
	err := writeConfigFile(filepath.Join(p.workDir, ruleListFileName), func(w io.Writer) {
		writeRuleList(w, p.cfg)
	})
	if err != nil {
		return err
	}

	err = writeConfigFile(filepath.Join(p.workDir, ruleSetFileName), func(w io.Writer) {
		writeRuleSet(w, p.cfg)
	})
	if err != nil {
		return err
	}

	for _, mode := range p.cfg.enabledModes() {
		err := writeConfigFile(filepath.Join(p.workDir, paramFileName(mode)), func(w io.Writer) {
			writeParamFile(w, p.cfg, mode)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WorkDir returns the pipeline's exclusive working directory.
func (p *Pipeline) WorkDir() string { return p.workDir }

// Close removes the working directory and all pipeline state.
func (p *Pipeline) Close() error {
	var firstErr error
	if p.store != nil {
		firstErr = p.store.Close()
		p.store = nil
	}
	if err := os.RemoveAll(p.workDir); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Process runs the whole round trip for a batch of input spectra and
// returns, per enabled mode, the stitched outputs keyed by (template id,
// target SNR).
//
// A simulator failure (non-zero exit, timeout) aborts the invocation.
// Failures confined to one (template, SNR) unit are collected in the mode's
// ModeOutput.Failures instead of aborting the batch.
func (p *Pipeline) Process(ctx context.Context, pairs []SourcePair) (map[Mode]*ModeOutput, error) {
	ids, err := p.generateTemplates(pairs)
	if err != nil {
		return nil, err
	}

	if err := p.builder.WriteFile(filepath.Join(p.workDir, templateListFileName)); err != nil {
		return nil, err
	}

	// Stale outputs from a previous Process call must not be picked up.
	for _, mode := range []Mode{ModeLRS, ModeHRS} {
		if err := os.RemoveAll(filepath.Join(p.workDir, outputDirName(mode))); err != nil {
			return nil, fmt.Errorf("sim: clear stale output directory: %w", err)
		}
	}

	output := make(map[Mode]*ModeOutput)
	for _, mode := range p.cfg.enabledModes() {
		p.log.Info("invoking simulator", "mode", string(mode))
		if err := p.runner.Run(ctx, p.workDir, mode); err != nil {
			return nil, err
		}

		results, failures, err := Combine(p.cfg, p.store, mode,
			filepath.Join(p.workDir, outputDirName(mode)), ids)
		if err != nil {
			return nil, err
		}
		for _, failure := range failures {
			p.log.Warn("unit failed", "mode", string(mode), "error", failure.Error())
		}
		output[mode] = &ModeOutput{Results: results, Failures: failures}
	}
	return output, nil
}

// generateTemplates writes the per-template simulator input files and
// enrolls each template in the manifest. Ids are sequential across Process
// calls on one pipeline.
func (p *Pipeline) generateTemplates(pairs []SourcePair) ([]int, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("sim: no input spectra")
	}

	ids := make([]int, 0, len(pairs))
	for _, pair := range pairs {
		id := p.builder.Allocate()
		if name, ok := pair.Flux.Metadata["Starname"].(string); ok {
			p.log.Info("generating template", "template", id, "object", name)
		} else {
			p.log.Info("generating template", "template", id)
		}

		fluxPath := filepath.Join(p.workDir, templateFileName(id, false))
		if err := WriteTemplate(fluxPath, pair, false, p.cfg); err != nil {
			return nil, fmt.Errorf("sim: template %d: %w", id, err)
		}

		continuumPath := ""
		if pair.Continuum != nil {
			continuumPath = filepath.Join(p.workDir, templateFileName(id, true))
			if err := WriteTemplate(continuumPath, pair, true, p.cfg); err != nil {
				return nil, fmt.Errorf("sim: template %d: %w", id, err)
			}
		}

		if err := p.builder.Add(id, fluxPath, continuumPath, pair.Flux.Metadata); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
