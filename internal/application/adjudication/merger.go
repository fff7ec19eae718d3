// Package adjudication applies human-curated overrides on top of automatic
// extraction.  Overrides are keyed by normalized study key and applied after
// the builder has computed flags, so corrections never erase QA history.
package adjudication

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Override lists the fields a reviewer may correct.  A field left out (or
// null) is not overridden.  Note is free text kept for the reviewer.
type Override struct {
	BolusValue               *float64 `json:"bolus_value,omitempty"`
	BolusUnit                *string  `json:"bolus_unit,omitempty"`
	InfusionLow              *float64 `json:"infusion_low,omitempty"`
	InfusionHigh             *float64 `json:"infusion_high,omitempty"`
	InfusionUnit             *string  `json:"infusion_unit,omitempty"`
	InfusionWeightNormalized *bool    `json:"infusion_weight_normalized,omitempty"`
	TimingPhase              *string  `json:"timing_phase,omitempty"`
	RouteStd                 *string  `json:"route_std,omitempty"`
	RobOverallStd            *string  `json:"rob_overall_std,omitempty"`
	NTotal                   *int     `json:"n_total,omitempty"`
	Note                     string   `json:"note,omitempty"`
}

// Empty reports whether o overrides nothing.
func (o Override) Empty() bool {
	return o.BolusValue == nil && o.BolusUnit == nil && o.InfusionLow == nil && o.InfusionHigh == nil &&
		o.InfusionUnit == nil && o.InfusionWeightNormalized == nil && o.TimingPhase == nil &&
		o.RouteStd == nil && o.RobOverallStd == nil && o.NTotal == nil
}

// Overrides maps lowercased study keys to overrides.
type Overrides map[string]Override

// ParseOverrides decodes the adjudication file: a JSON object keyed by study
// key.  Keys are lowercased; entries that are not objects are skipped.
func ParseOverrides(data []byte) (Overrides, error) {
	out := Overrides{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
			"manual adjudications must be a JSON object keyed by study key: %v", err)
	}
	for key, msg := range raw {
		if t := bytes.TrimSpace(msg); len(t) == 0 || t[0] != '{' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.DisallowUnknownFields()
		var o Override
		if err := dec.Decode(&o); err != nil {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
				"manual adjudication %q: %v", key, err).WithDetail(key)
		}
		out[strings.ToLower(strings.TrimSpace(key))] = o
	}
	return out, nil
}

// Merger applies overrides to a record set.
type Merger struct {
	bands  trial.Bands
	logger logging.Logger
}

// NewMerger returns a Merger re-evaluating QA rules with bands.
func NewMerger(bands trial.Bands, logger logging.Logger) *Merger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Merger{bands: bands, logger: logger}
}

// Merge returns the record set with overrides applied, in input order.
// Records without an override are returned unchanged; corrected records are
// copies.  Override keys matching no record, and overrides without fields,
// are returned as warnings sorted by study key.  An invalid override value
// is a SchemaError.
func (m *Merger) Merge(records []*trial.TrialRecord, overrides Overrides) ([]*trial.TrialRecord, []trial.OverrideWarning, error) {
	out := make([]*trial.TrialRecord, len(records))
	used := make(map[string]bool, len(overrides))
	applied := 0

	for i, rec := range records {
		out[i] = rec
		key := rec.StudyKey()
		o, ok := overrides[key]
		if !ok {
			continue
		}
		used[key] = true
		if o.Empty() {
			continue
		}
		merged, err := m.apply(rec, o)
		if err != nil {
			return nil, nil, err
		}
		out[i] = merged
		applied++
	}

	var warnings []trial.OverrideWarning
	for key, o := range overrides {
		switch {
		case !used[key]:
			miss := errors.NewOverrideKeyMiss(key)
			warnings = append(warnings, trial.OverrideWarning{
				StudyKey: key,
				Code:     string(miss.Code),
				Message:  miss.Message,
			})
		case o.Empty():
			warnings = append(warnings, trial.OverrideWarning{
				StudyKey: key,
				Code:     string(errors.ErrCodeOverrideInvalid),
				Message:  "override has no fields",
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].StudyKey < warnings[j].StudyKey })

	for _, w := range warnings {
		m.logger.Warn("manual adjudication not applied",
			logging.String("study_key", w.StudyKey),
			logging.String("code", w.Code),
			logging.String("reason", w.Message))
	}
	m.logger.Info("manual adjudications merged",
		logging.Stage("adjudicate"),
		logging.Int("overrides", len(overrides)),
		logging.Int("records_corrected", applied),
		logging.Int("warnings", len(warnings)))
	return out, warnings, nil
}

// apply corrects a copy of rec.  Previous flags are kept; the flags the QA
// rules raise on the corrected values are added, and the critical list is
// recomputed from those rules.
func (m *Merger) apply(rec *trial.TrialRecord, o Override) (*trial.TrialRecord, error) {
	invalid := func(format string, args ...interface{}) error {
		return errors.NewSchemaError(errors.ErrCodeSchemaInvariant, "manual adjudication for %s: %s",
			rec.StudyKey(), fmt.Sprintf(format, args...)).WithDetail(rec.TrialID)
	}
	c := rec.Clone()

	if o.BolusValue != nil {
		if *o.BolusValue < 0 {
			return nil, invalid("negative bolus_value %v", *o.BolusValue)
		}
		if o.BolusUnit != nil && *o.BolusUnit != ttypes.UnitBolus {
			return nil, invalid("bolus_unit must be %s, got %q", ttypes.UnitBolus, *o.BolusUnit)
		}
		c.SetBolus(o.BolusValue)
	} else if o.BolusUnit != nil {
		return nil, invalid("bolus_unit without bolus_value")
	}

	infusionOverridden := o.InfusionLow != nil
	if infusionOverridden {
		low := *o.InfusionLow
		high := low
		if o.InfusionHigh != nil {
			high = *o.InfusionHigh
		}
		if low < 0 || high < 0 {
			return nil, invalid("negative infusion range %v-%v", low, high)
		}
		if low > high {
			return nil, invalid("infusion_low %v exceeds infusion_high %v", low, high)
		}
		weightNorm, err := overrideWeightNormalization(rec, o)
		if err != nil {
			return nil, invalid("%v", err)
		}
		c.SetInfusion(&low, &high, weightNorm)
	} else if o.InfusionHigh != nil || o.InfusionUnit != nil || o.InfusionWeightNormalized != nil {
		return nil, invalid("infusion fields without infusion_low")
	}

	if o.TimingPhase != nil {
		p, err := ttypes.ParseTimingPhase(*o.TimingPhase)
		if err != nil {
			return nil, invalid("%v", err)
		}
		c.TimingPhase = p
	}
	if o.RouteStd != nil {
		r, err := ttypes.ParseRoute(*o.RouteStd)
		if err != nil {
			return nil, invalid("%v", err)
		}
		c.RouteStd = r
	}
	if o.RobOverallStd != nil {
		cat, err := ttypes.ParseRobCategory(*o.RobOverallStd)
		if err != nil {
			return nil, invalid("%v", err)
		}
		c.RobOverallStd = cat
	}
	if o.NTotal != nil {
		if *o.NTotal < 0 {
			return nil, invalid("negative n_total %d", *o.NTotal)
		}
		n := *o.NTotal
		c.NTotal = &n
	}

	ruleFlags := trial.EvaluateRules(c, m.bands)
	critical := trial.CriticalOf(ruleFlags)
	// A range reversed in the source is stored ascending, so the rule cannot
	// see it; it stays critical until the infusion itself is corrected.
	if !infusionOverridden && containsFlag(rec.CriticalFlags, ttypes.FlagInfusionRangeInvalid) {
		critical = append(critical, ttypes.FlagInfusionRangeInvalid)
	}

	flags := append([]string{}, rec.ValidationFlags...)
	flags = append(flags, ttypes.FlagManualAdjudication)
	flags = append(flags, ruleFlags...)

	robDefaulted := trial.RobDefaulted(rec.ValidationFlags) && o.RobOverallStd == nil
	c.ExtractionConfidence = trial.ExtractionConfidence(c, robDefaulted)
	c.Finalize(flags, critical)
	return c, nil
}

// overrideWeightNormalization resolves the infusion unit of an override: an
// explicit unit wins, then the explicit flag, then the record's current unit,
// then mcg/kg/h.
func overrideWeightNormalization(rec *trial.TrialRecord, o Override) (bool, error) {
	if o.InfusionUnit != nil {
		if !ttypes.IsValidInfusionUnit(*o.InfusionUnit) {
			return false, fmt.Errorf("invalid infusion_unit %q", *o.InfusionUnit)
		}
		perKg := *o.InfusionUnit == ttypes.UnitInfusionPerKg
		if o.InfusionWeightNormalized != nil && *o.InfusionWeightNormalized != perKg {
			return false, fmt.Errorf("infusion_weight_normalized disagrees with infusion_unit %q", *o.InfusionUnit)
		}
		return perKg, nil
	}
	if o.InfusionWeightNormalized != nil {
		return *o.InfusionWeightNormalized, nil
	}
	if rec.InfusionUnit != nil {
		return rec.InfusionWeightNormalized, nil
	}
	return true, nil
}

func containsFlag(flags []string, f string) bool {
	for _, v := range flags {
		if v == f {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
