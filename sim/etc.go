package sim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner is the boundary to the external exposure-time-calculator process.
// The request is the prepared working directory (templates, manifest, rule
// files, parameter file); the response is the per-run output files and the
// run summary the process leaves behind in outputDirName(mode).
//
// Implementations must block until the outputs are fully written.
type Runner interface {
	Run(ctx context.Context, workDir string, mode Mode) error
}

// RunnerFunc adapts a function to the [Runner] interface, which is how
// tests install an in-process stub that fabricates simulator outputs.
type RunnerFunc func(ctx context.Context, workDir string, mode Mode) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, workDir string, mode Mode) error {
	return f(ctx, workDir, mode)
}

// ExecRunner invokes the real simulator binary, synchronously, with the
// mode's parameter file as its argument. Standard output and error are
// redirected to a per-mode log file in the working directory.
//
// A non-zero exit is a hard failure for the whole invocation, and Timeout
// (when non-zero) bounds the run; a hung binary no longer hangs the
// pipeline indefinitely.
type ExecRunner struct {
	BinaryPath string
	Timeout    time.Duration
}

// Run executes the simulator for one instrument mode.
func (r *ExecRunner) Run(ctx context.Context, workDir string, mode Mode) error {
	if r.BinaryPath == "" {
		return fmt.Errorf("sim: no simulator binary configured")
	}
	if _, err := os.Stat(r.BinaryPath); err != nil {
		return fmt.Errorf("sim: simulator binary not found: %w", err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logFile, err := os.Create(filepath.Join(workDir, logFileName(mode)))
	if err != nil {
		return fmt.Errorf("sim: create simulator log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, r.BinaryPath, "PARAM_FILENAME="+paramFileName(mode))
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sim: simulator %s run failed (see %s): %w", mode, logFileName(mode), err)
	}
	return nil
}

// paramFileName names the per-mode simulator parameter file.
func paramFileName(mode Mode) string {
	return fmt.Sprintf("ETC_input_params_%s.txt", mode)
}

// logFileName names the per-mode simulator log.
func logFileName(mode Mode) string {
	return strings.ToLower(string(mode)) + "_output.log"
}

// outputDirName names the directory the simulator fills with one mode's
// outputs, relative to the working directory.
func outputDirName(mode Mode) string {
	return "outdir_" + string(mode)
}
