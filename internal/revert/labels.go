package revert

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/casetrail/internal/ir"
)

// LabelConfigVersion is the only taxonomy version this engine understands.
const LabelConfigVersion = 1

// LabelConfig classifies context labels for the revert engine.
//
//   - Anchor: contexts whose root-note events are known-good full snapshots
//   - Additions: contexts whose events are undone
//   - Removals: contexts whose events are restored
//   - Mixed: contexts classified per event (inserts undone, deletes restored)
//   - Neutral: labels the engine deliberately ignores
//
// Every label a mutation can produce must be classified by at least one
// set; see Covers.
type LabelConfig struct {
	Version   int      `yaml:"version" json:"version"`
	Anchor    []string `yaml:"anchor" json:"anchor"`
	Additions []string `yaml:"additions" json:"additions"`
	Removals  []string `yaml:"removals" json:"removals"`
	Mixed     []string `yaml:"mixed" json:"mixed"`
	Neutral   []string `yaml:"neutral" json:"neutral"`
	Revert    string   `yaml:"revert" json:"revert"`
}

// DefaultLabels returns the taxonomy for the operations in package notes.
func DefaultLabels() LabelConfig {
	return LabelConfig{
		Version: LabelConfigVersion,
		Anchor:  []string{ir.LabelNoteCreate, ir.LabelNoteUpdate, ir.LabelNoteRevert},
		Additions: []string{
			ir.LabelMoodAdd,
			ir.LabelPurposeAdd,
			ir.LabelNextStepAdd,
			ir.LabelProvidedServiceAdd,
			ir.LabelRequestedServiceAdd,
		},
		Removals: []string{
			ir.LabelMoodRemove,
			ir.LabelPurposeRemove,
			ir.LabelNextStepRemove,
			ir.LabelProvidedServiceRemove,
			ir.LabelRequestedServiceRemove,
		},
		Mixed:   []string{ir.LabelNoteRevert},
		Neutral: []string{ir.LabelTaskCreate, ir.LabelTaskDelete, ir.LabelServiceRequestCreate},
		Revert:  ir.LabelNoteRevert,
	}
}

// Validate checks the taxonomy is internally consistent:
//   - the version is supported
//   - no label is empty
//   - additions, removals, mixed, and neutral are pairwise disjoint
//   - neutral labels are not anchors
//   - the revert label is both an anchor and mixed, so a later revert can
//     see an earlier one
func (c LabelConfig) Validate() error {
	if c.Version != LabelConfigVersion {
		return fmt.Errorf("labels: unsupported version %d (want %d)", c.Version, LabelConfigVersion)
	}
	if c.Revert == "" {
		return fmt.Errorf("labels: revert label is required")
	}

	sets := []struct {
		name   string
		labels []string
	}{
		{"additions", c.Additions},
		{"removals", c.Removals},
		{"mixed", c.Mixed},
		{"neutral", c.Neutral},
	}
	owner := make(map[string]string)
	for _, set := range sets {
		for _, l := range set.labels {
			if l == "" {
				return fmt.Errorf("labels: empty label in %s", set.name)
			}
			if prev, ok := owner[l]; ok && prev != set.name {
				return fmt.Errorf("labels: %q is in both %s and %s", l, prev, set.name)
			}
			owner[l] = set.name
		}
	}
	for _, l := range c.Anchor {
		if l == "" {
			return fmt.Errorf("labels: empty label in anchor")
		}
		if owner[l] == "neutral" {
			return fmt.Errorf("labels: %q is in both anchor and neutral", l)
		}
	}

	if !slices.Contains(c.Anchor, c.Revert) {
		return fmt.Errorf("labels: revert label %q must be an anchor", c.Revert)
	}
	if !slices.Contains(c.Mixed, c.Revert) {
		return fmt.Errorf("labels: revert label %q must be mixed", c.Revert)
	}
	return nil
}

// Covers returns an error naming every label not classified by any set.
func (c LabelConfig) Covers(labels []string) error {
	known := make(map[string]bool)
	for _, set := range [][]string{c.Anchor, c.Additions, c.Removals, c.Mixed, c.Neutral} {
		for _, l := range set {
			known[l] = true
		}
	}

	var missing []string
	for _, l := range labels {
		if !known[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		missing = slices.Compact(missing)
		return fmt.Errorf("labels: unclassified: %s", strings.Join(missing, ", "))
	}
	return nil
}
