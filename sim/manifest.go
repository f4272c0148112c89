package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cwbudde/algo-spectro/internal/metastore"
	"github.com/cwbudde/algo-spectro/spectrum"
)

const manifestHeader = "#OBJECTNAME           FILENAME                                                 RULESET SIZE REDSHIFT MAG  MAG_RANGE\n"

// ManifestBuilder allocates template ids and accumulates the exposure
// requests handed to the external simulator.
//
// Enumeration is deterministic for a given input ordering: ids are assigned
// sequentially, distinct SNR-definition names are iterated in sorted order,
// and each template contributes its lines in template, SNR, definition
// order. Downstream run-number matching depends on this stability.
type ManifestBuilder struct {
	cfg   Config
	store *metastore.Store
	defs  []string

	next  int
	ids   []int
	lines []string
}

// NewManifestBuilder validates cfg and returns an empty builder recording
// template metadata into store.
func NewManifestBuilder(cfg Config, store *metastore.Store) (*ManifestBuilder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ManifestBuilder{
		cfg:   cfg,
		store: store,
		defs:  distinctDefinitions(cfg),
	}, nil
}

// distinctDefinitions returns the sorted set of non-empty SNR-definition
// names referenced by the enabled modes' arms.
func distinctDefinitions(cfg Config) []string {
	seen := make(map[string]bool)
	for _, mode := range cfg.enabledModes() {
		for _, name := range cfg.armDefinitions(mode) {
			if name != "" {
				seen[name] = true
			}
		}
	}

	defs := make([]string, 0, len(seen))
	for name := range seen {
		defs = append(defs, name)
	}
	sort.Strings(defs)
	return defs
}

// Allocate reserves and returns the next sequential template id.
func (b *ManifestBuilder) Allocate() int {
	id := b.next
	b.next++
	return id
}

// Add records one template's exposure requests: one manifest line per
// (SNR, distinct SNR definition) combination, plus a single high-SNR
// continuum-only request when continuumPath is non-empty. The originating
// metadata is captured in the store so the combiner can reattach it later.
func (b *ManifestBuilder) Add(id int, fluxPath, continuumPath string, meta spectrum.Metadata) error {
	if err := b.store.Record(id, meta); err != nil {
		return err
	}

	for _, snr := range b.cfg.SNRList {
		for _, def := range b.defs {
			b.lines = append(b.lines, fmt.Sprintf("%s %s %s %s %s %g %g\n",
				objectName(id, snr, def), fluxPath, rulesetTag(snr, def),
				"0.0", "0.0", b.cfg.ReferenceMagnitude, b.cfg.Magnitude))
		}
	}

	if continuumPath != "" {
		b.lines = append(b.lines, fmt.Sprintf("%s %s %s %s %s %g %g\n",
			continuumObjectName(id), continuumPath, continuumRulesetTag(b.cfg),
			"0.0", "0.0", b.cfg.ReferenceMagnitude, b.cfg.Magnitude))
	}

	b.ids = append(b.ids, id)
	return nil
}

// TemplateIDs returns the ids added so far, in allocation order.
func (b *ManifestBuilder) TemplateIDs() []int {
	return append([]int(nil), b.ids...)
}

// WriteTo emits the manifest, header first.
func (b *ManifestBuilder) WriteTo(w io.Writer) (int64, error) {
	var written int64

	n, err := io.WriteString(w, manifestHeader)
	written += int64(n)
	if err != nil {
		return written, err
	}

	for _, line := range b.lines {
		n, err := io.WriteString(w, line)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteFile writes the manifest to path.
func (b *ManifestBuilder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sim: create manifest: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := b.WriteTo(w); err != nil {
		return fmt.Errorf("sim: write manifest: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("sim: write manifest: %w", err)
	}
	return f.Close()
}

// String renders the manifest contents.
func (b *ManifestBuilder) String() string {
	var sb strings.Builder
	b.WriteTo(&sb)
	return sb.String()
}

// objectName is the identifier under which the simulator reports one
// exposure request; it reappears in the per-arm output file names.
func objectName(id int, snr float64, def string) string {
	return fmt.Sprintf("template_%d_SNR%.1f_%s", id, snr, def)
}

// continuumObjectName identifies a template's continuum-only request.
func continuumObjectName(id int) string {
	return fmt.Sprintf("template_%d_c", id)
}

func rulesetTag(snr float64, def string) string {
	return fmt.Sprintf("goodSNR%.1f_%s", snr, def)
}

func continuumRulesetTag(cfg Config) string {
	return fmt.Sprintf("goodSNR%.0fc", cfg.ContinuumSNR)
}
