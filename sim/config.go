package sim

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-spectro/photometry"
)

// Mode selects one of the instrument's two resolution setups.
type Mode string

const (
	// ModeLRS is the low-resolution setup. Its three arms overlap in
	// wavelength and are truncated at the configured cutovers when stitched.
	ModeLRS Mode = "LRS"
	// ModeHRS is the high-resolution setup. Its arms are already disjoint
	// and are concatenated without truncation.
	ModeHRS Mode = "HRS"
)

// SNRDefinition names a wavelength window, in Angstrom, over which the
// simulator evaluates the signal-to-noise ratio of a run.
type SNRDefinition struct {
	Name          string
	MinWavelength float64
	MaxWavelength float64
}

// Config collects all pipeline settings. Use [DefaultConfig] or [New] with
// options rather than filling it in by hand.
type Config struct {
	// BinaryPath locates the external simulator binary. Ignored when a
	// custom Runner is installed.
	BinaryPath string

	// Runner overrides the external-simulator boundary. Nil selects an
	// [ExecRunner] on BinaryPath; tests install an in-process stub here.
	Runner Runner

	// Timeout bounds one external simulator invocation. Zero means no
	// timeout beyond the caller's context.
	Timeout time.Duration

	// Magnitude is the target apparent magnitude reported to the simulator
	// for exposure-time calculation.
	Magnitude float64

	// MagnitudeUnreddened, when set, treats Magnitude as unreddened; each
	// input spectrum must then carry an "A_<band>" reddening metadata value.
	MagnitudeUnreddened bool

	// PhotometricBand is the band in which magnitudes are measured.
	PhotometricBand photometry.Band

	// ReferenceMagnitude is the common brightness every emitted template is
	// rescaled to, decoupling simulated noise from source brightness.
	ReferenceMagnitude float64

	// SNRList holds the target signal-to-noise ratios, in caller order.
	// Manifest enumeration and run numbering both follow this order.
	SNRList []float64

	// SNRPerPixel selects SNR per pixel (true) or per Angstrom (false).
	SNRPerPixel bool

	// SNRDefinitions enumerates the named SNR windows written to the
	// simulator rule list.
	SNRDefinitions []SNRDefinition

	// ContinuumSNR is the target SNR of the single continuum-only exposure
	// requested per template that has a continuum companion.
	ContinuumSNR float64

	// RunLRS and RunHRS enable the two instrument modes.
	RunLRS bool
	RunHRS bool

	// LRSArmDefinitions and HRSArmDefinitions assign one SNR-definition name
	// per arm, in red, green, blue order. An empty name marks an arm as
	// unused; its stitched contribution is a zero-length placeholder.
	LRSArmDefinitions []string
	HRSArmDefinitions []string

	// ArmCutovers are the two wavelengths, in Angstrom, at which the
	// overlapping low-resolution arms are truncated during stitching.
	ArmCutovers [2]float64

	// Resolution is the resolving power recorded in template headers.
	// Zero omits the header.
	Resolution float64

	// DegradeResolution convolves template flux down to Resolution before
	// photometry and emission.
	DegradeResolution bool

	// Identifier distinguishes working directories of multiple pipeline
	// instances inside one process.
	Identifier string

	// WorkRoot is the directory under which the exclusive working directory
	// is created. Empty means the system temporary directory.
	WorkRoot string
}

// DefaultConfig returns the standard survey configuration.
func DefaultConfig() Config {
	return Config{
		Magnitude:          14,
		PhotometricBand:    photometry.SDSSr,
		ReferenceMagnitude: 15.0,
		SNRList:            []float64{10, 12, 14, 16, 18, 20, 23, 26, 30, 35, 40, 45, 50, 80, 100, 130, 180, 250},
		SNRPerPixel:        true,
		SNRDefinitions: []SNRDefinition{
			{Name: "MEDIANSNR", MinWavelength: 6180, MaxWavelength: 6680},
		},
		ContinuumSNR:      250,
		RunLRS:            true,
		RunHRS:            true,
		LRSArmDefinitions: []string{"MEDIANSNR", "MEDIANSNR", "MEDIANSNR"},
		HRSArmDefinitions: []string{"MEDIANSNR", "MEDIANSNR", "MEDIANSNR"},
		ArmCutovers:       [2]float64{5327.7, 7031.7},
		Resolution:        50000,
		Identifier:        "x",
	}
}

// Validate checks the preconditions that must hold before any file I/O.
func (c Config) Validate() error {
	if !c.RunLRS && !c.RunHRS {
		return fmt.Errorf("sim: at least one instrument mode must be enabled")
	}
	if len(c.SNRList) == 0 {
		return fmt.Errorf("sim: SNR list must not be empty")
	}
	if c.RunLRS && len(c.LRSArmDefinitions) != 3 {
		return fmt.Errorf("sim: need three SNR definitions for the LRS red, green and blue arms: got %d", len(c.LRSArmDefinitions))
	}
	if c.RunHRS && len(c.HRSArmDefinitions) != 3 {
		return fmt.Errorf("sim: need three SNR definitions for the HRS red, green and blue arms: got %d", len(c.HRSArmDefinitions))
	}
	if !(c.ArmCutovers[1] > c.ArmCutovers[0]) {
		return fmt.Errorf("sim: arm cutovers must be increasing: %g, %g", c.ArmCutovers[0], c.ArmCutovers[1])
	}

	named := make(map[string]bool, len(c.SNRDefinitions))
	for _, def := range c.SNRDefinitions {
		if def.Name == "" {
			return fmt.Errorf("sim: SNR definition with empty name")
		}
		if !(def.MaxWavelength > def.MinWavelength) {
			return fmt.Errorf("sim: SNR definition %q has empty wavelength window", def.Name)
		}
		named[def.Name] = true
	}
	for _, name := range c.armDefinitions(ModeLRS) {
		if name != "" && !named[name] {
			return fmt.Errorf("sim: LRS arm references unknown SNR definition %q", name)
		}
	}
	for _, name := range c.armDefinitions(ModeHRS) {
		if name != "" && !named[name] {
			return fmt.Errorf("sim: HRS arm references unknown SNR definition %q", name)
		}
	}
	return nil
}

// armDefinitions returns the per-arm definition names for mode, in the
// configured red, green, blue order, or nil when the mode is disabled.
func (c Config) armDefinitions(mode Mode) []string {
	switch {
	case mode == ModeLRS && c.RunLRS:
		return c.LRSArmDefinitions
	case mode == ModeHRS && c.RunHRS:
		return c.HRSArmDefinitions
	}
	return nil
}

// enabledModes lists the active instrument modes in fixed LRS, HRS order.
func (c Config) enabledModes() []Mode {
	var modes []Mode
	if c.RunLRS {
		modes = append(modes, ModeLRS)
	}
	if c.RunHRS {
		modes = append(modes, ModeHRS)
	}
	return modes
}

// Option mutates a Config.
type Option func(*Config)

// WithBinaryPath sets the external simulator binary location.
func WithBinaryPath(path string) Option {
	return func(cfg *Config) { cfg.BinaryPath = path }
}

// WithRunner installs a custom simulator boundary in place of the
// default [ExecRunner].
func WithRunner(runner Runner) Option {
	return func(cfg *Config) { cfg.Runner = runner }
}

// WithTimeout bounds each external simulator invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *Config) { cfg.Timeout = timeout }
}

// WithMagnitude sets the target magnitude, optionally taken as unreddened.
func WithMagnitude(magnitude float64, unreddened bool) Option {
	return func(cfg *Config) {
		cfg.Magnitude = magnitude
		cfg.MagnitudeUnreddened = unreddened
	}
}

// WithPhotometricBand sets the band magnitudes are measured in.
func WithPhotometricBand(band photometry.Band) Option {
	return func(cfg *Config) { cfg.PhotometricBand = band }
}

// WithSNRList sets the target SNR values, preserving caller order.
func WithSNRList(snrs ...float64) Option {
	return func(cfg *Config) {
		if len(snrs) > 0 {
			cfg.SNRList = snrs
		}
	}
}

// WithSNRDefinitions replaces the named SNR windows.
func WithSNRDefinitions(defs ...SNRDefinition) Option {
	return func(cfg *Config) {
		if len(defs) > 0 {
			cfg.SNRDefinitions = defs
		}
	}
}

// WithSNRPerAngstrom quotes SNR targets per Angstrom instead of per pixel.
func WithSNRPerAngstrom() Option {
	return func(cfg *Config) { cfg.SNRPerPixel = false }
}

// WithModes enables or disables the two instrument modes.
func WithModes(lrs, hrs bool) Option {
	return func(cfg *Config) {
		cfg.RunLRS = lrs
		cfg.RunHRS = hrs
	}
}

// WithArmDefinitions assigns per-arm SNR-definition names for mode, in red,
// green, blue order.
func WithArmDefinitions(mode Mode, red, green, blue string) Option {
	return func(cfg *Config) {
		defs := []string{red, green, blue}
		if mode == ModeLRS {
			cfg.LRSArmDefinitions = defs
		} else {
			cfg.HRSArmDefinitions = defs
		}
	}
}

// WithArmCutovers sets the low-resolution stitching cutover wavelengths.
func WithArmCutovers(low, high float64) Option {
	return func(cfg *Config) { cfg.ArmCutovers = [2]float64{low, high} }
}

// WithResolution sets the template resolving power; degrade selects whether
// flux is convolved down to it before emission.
func WithResolution(resolvingPower float64, degrade bool) Option {
	return func(cfg *Config) {
		cfg.Resolution = resolvingPower
		cfg.DegradeResolution = degrade
	}
}

// WithIdentifier namespaces the working directory of this instance.
func WithIdentifier(identifier string) Option {
	return func(cfg *Config) {
		if identifier != "" {
			cfg.Identifier = identifier
		}
	}
}

// WithWorkRoot places the working directory under root instead of the
// system temporary directory.
func WithWorkRoot(root string) Option {
	return func(cfg *Config) { cfg.WorkRoot = root }
}
