package linkage

import (
	"bytes"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ArmCounts is a manually curated dexmedetomidine arm.
type ArmCounts struct {
	Label  string `yaml:"label"`
	Events int    `yaml:"events"`
	Total  int    `yaml:"total"`
}

// EventOverride replaces the CSV counts of one trial.
type EventOverride struct {
	StudyIDCSV    string            `yaml:"study_id_csv"`
	ControlLabel  string            `yaml:"control_label"`
	ControlEvents int               `yaml:"control_events"`
	ControlTotal  int               `yaml:"control_total"`
	Arms          map[int]ArmCounts `yaml:"arms"`
}

// ArmIndices returns the override's arm indices in ascending order.
func (o EventOverride) ArmIndices() []int {
	idx := make([]int, 0, len(o.Arms))
	for i := range o.Arms {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Policy holds the manual curation decisions applied during linkage.  All
// maps are keyed by trial id without the page suffix, except Aliases which
// maps a study key to the key used in the event CSV.
type Policy struct {
	Aliases        map[string]string         `yaml:"aliases"`
	ExcludedTrials []string                  `yaml:"excluded_trials"`
	DexArmKeep     map[string][]int          `yaml:"dex_arm_keep"`
	ArmLabels      map[string]map[int]string `yaml:"arm_labels"`
	EventOverrides map[string]EventOverride  `yaml:"event_overrides"`
}

// ParsePolicy decodes a YAML linkage policy.  Unknown keys and invalid manual
// counts are schema errors.  Empty input yields an empty policy.
func ParsePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "linkage policy: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the manual event overrides.
func (p *Policy) Validate() error {
	ids := make([]string, 0, len(p.EventOverrides))
	for id := range p.EventOverrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := p.EventOverrides[id]
		if !validCounts(o.ControlEvents, o.ControlTotal) {
			return errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
				"invalid manual override control counts for %s", id).WithDetail(id)
		}
		if len(o.Arms) == 0 {
			return errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
				"manual override for %s has no dex arms", id).WithDetail(id)
		}
		for _, idx := range o.ArmIndices() {
			arm := o.Arms[idx]
			if !validCounts(arm.Events, arm.Total) {
				return errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
					"invalid manual override dex counts for %s arm %d", id, idx).WithDetail(id)
			}
		}
	}
	return nil
}

func validCounts(events, total int) bool {
	return events >= 0 && total > 0 && events <= total
}

func (p *Policy) excluded(trialID string) bool {
	for _, id := range p.ExcludedTrials {
		if strings.EqualFold(strings.TrimSpace(id), trialID) {
			return true
		}
	}
	return false
}

func (p *Policy) resolveKey(key string) (string, bool) {
	if alias, ok := p.Aliases[key]; ok && alias != "" && alias != key {
		return alias, true
	}
	return key, false
}

func (p *Policy) keepArms(trialID string, indices []int) []int {
	keep, ok := p.DexArmKeep[trialID]
	if !ok {
		return indices
	}
	out := indices[:0:0]
	for _, idx := range indices {
		for _, k := range keep {
			if idx == k {
				out = append(out, idx)
				break
			}
		}
	}
	return out
}

func (p *Policy) armLabel(trialID string, idx int, fallback string) string {
	if labels, ok := p.ArmLabels[trialID]; ok {
		if l, ok := labels[idx]; ok && l != "" {
			return l
		}
	}
	return fallback
}

//Personal.AI order the ending
