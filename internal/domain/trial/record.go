// Package trial implements the canonical TrialRecord of the curated dataset
// together with the QA rules, the extraction-confidence score and the record
// invariants.  Records are built by the extraction service, corrected at most
// once by the adjudication merger and read-only afterwards.
package trial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// ─────────────────────────────────────────────────────────────────────────────
// TrialRecord
// ─────────────────────────────────────────────────────────────────────────────

// TrialRecord is one curated trial-arm comparison.  Field order is the
// serialization order of the curated dataset; absent optional values encode
// as null.
type TrialRecord struct {
	TrialID    string `json:"trial_id"`
	StudyLabel string `json:"study_label"`
	Year       *int   `json:"year"`
	Country    string `json:"country"`
	NTotal     *int   `json:"n_total"`

	DexArmTextRaw     string              `json:"dex_arm_text_raw"`
	ControlArmTextRaw string              `json:"control_arm_text_raw"`
	ControlClass      ttypes.ControlClass `json:"control_class"`

	BolusValue               *float64 `json:"bolus_value"`
	BolusUnit                *string  `json:"bolus_unit"`
	InfusionLow              *float64 `json:"infusion_low"`
	InfusionHigh             *float64 `json:"infusion_high"`
	InfusionUnit             *string  `json:"infusion_unit"`
	InfusionWeightNormalized bool     `json:"infusion_weight_normalized"`

	TimingRaw   string             `json:"timing_raw"`
	TimingPhase ttypes.TimingPhase `json:"timing_phase"`
	RouteRaw    string             `json:"route_raw"`
	RouteStd    ttypes.Route       `json:"route_std"`

	RobOverallRaw string             `json:"rob_overall_raw"`
	RobOverallStd ttypes.RobCategory `json:"rob_overall_std"`

	ExtractionConfidence float64  `json:"extraction_confidence"`
	ValidationFlags      FlagList `json:"validation_flags"`
	CriticalFlags        FlagList `json:"critical_flags"`
	NeedsAdjudication    bool     `json:"needs_adjudication"`
	HasCriticalIssues    bool     `json:"has_critical_issues"`

	SourcePage int    `json:"source_page"`
	SourceFile string `json:"source_file"`

	InterventionEvents string `json:"intervention_events"`
	ControlEvents      string `json:"control_events"`
	AssessmentTool     string `json:"assessment_tool"`
	PostopICUCare      string `json:"postop_icu_care"`
}

var trialIDPageRe = regexp.MustCompile(`_p\d+$`)

// NewTrialID derives the deterministic identifier of a (study, page) pair.
func NewTrialID(studyKey string, sourcePage int) string {
	return studyKey + "_p" + strconv.Itoa(sourcePage)
}

// StudyKey recovers the study key the trial_id was derived from.
func (r *TrialRecord) StudyKey() string {
	return trialIDPageRe.ReplaceAllString(r.TrialID, "")
}

// HasFlag reports whether f is among the validation flags.
func (r *TrialRecord) HasFlag(f string) bool {
	for _, v := range r.ValidationFlags {
		if v == f {
			return true
		}
	}
	return false
}

// SetBolus stores a bolus in mcg/kg; nil clears it.
func (r *TrialRecord) SetBolus(v *float64) {
	if v == nil {
		r.BolusValue, r.BolusUnit = nil, nil
		return
	}
	val := *v
	unit := ttypes.UnitBolus
	r.BolusValue, r.BolusUnit = &val, &unit
}

// SetInfusion stores an infusion range.  A nil low clears the infusion.
// A nil high defaults to low.
func (r *TrialRecord) SetInfusion(low, high *float64, weightNormalized bool) {
	if low == nil {
		r.InfusionLow, r.InfusionHigh, r.InfusionUnit = nil, nil, nil
		r.InfusionWeightNormalized = false
		return
	}
	l := *low
	h := l
	if high != nil {
		h = *high
	}
	unit := ttypes.UnitInfusionFixed
	if weightNormalized {
		unit = ttypes.UnitInfusionPerKg
	}
	r.InfusionLow, r.InfusionHigh, r.InfusionUnit = &l, &h, &unit
	r.InfusionWeightNormalized = weightNormalized
}

// InfusionMidpoint returns the midpoint of a weight-normalized mcg/kg/h
// infusion.  ok is false for absent or fixed-rate infusions.
func (r *TrialRecord) InfusionMidpoint() (mid float64, ok bool) {
	if r.InfusionLow == nil || r.InfusionHigh == nil {
		return 0, false
	}
	if !r.InfusionWeightNormalized || r.InfusionUnit == nil || *r.InfusionUnit != ttypes.UnitInfusionPerKg {
		return 0, false
	}
	return (*r.InfusionLow + *r.InfusionHigh) / 2, true
}

// Finalize stores the flag lists in canonical form and derives the QA
// booleans.  Critical flags are restricted to the critical set and always
// also appear among the validation flags.
func (r *TrialRecord) Finalize(flags, critical []string) {
	crit := make([]string, 0, len(critical))
	for _, f := range critical {
		if ttypes.IsCritical(f) {
			crit = append(crit, f)
		}
	}
	r.CriticalFlags = NormalizeFlags(crit)
	r.ValidationFlags = NormalizeFlags(append(append([]string{}, flags...), r.CriticalFlags...))
	r.NeedsAdjudication = len(r.ValidationFlags) > 0
	r.HasCriticalIssues = len(r.CriticalFlags) > 0
}

// Clone returns a deep copy.
func (r *TrialRecord) Clone() *TrialRecord {
	c := *r
	c.Year = cloneInt(r.Year)
	c.NTotal = cloneInt(r.NTotal)
	c.BolusValue = cloneFloat(r.BolusValue)
	c.BolusUnit = cloneString(r.BolusUnit)
	c.InfusionLow = cloneFloat(r.InfusionLow)
	c.InfusionHigh = cloneFloat(r.InfusionHigh)
	c.InfusionUnit = cloneString(r.InfusionUnit)
	c.ValidationFlags = append(FlagList(nil), r.ValidationFlags...)
	c.CriticalFlags = append(FlagList(nil), r.CriticalFlags...)
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ─────────────────────────────────────────────────────────────────────────────
// Invariants
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the record invariants.  A violation is a pipeline defect,
// reported as a SchemaError carrying the trial_id.
func (r *TrialRecord) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return errors.NewSchemaError(errors.ErrCodeSchemaInvariant, format, args...).WithDetail(r.TrialID)
	}
	if strings.TrimSpace(r.TrialID) == "" {
		return fail("trial_id is empty")
	}
	if !r.ControlClass.IsValid() {
		return fail("invalid control_class %q", r.ControlClass)
	}
	if !r.TimingPhase.IsValid() {
		return fail("invalid timing_phase %q", r.TimingPhase)
	}
	if !r.RouteStd.IsValid() {
		return fail("invalid route_std %q", r.RouteStd)
	}
	if !r.RobOverallStd.IsValid() {
		return fail("invalid rob_overall_std %q", r.RobOverallStd)
	}

	if r.BolusValue != nil {
		if *r.BolusValue < 0 {
			return fail("negative bolus_value %v", *r.BolusValue)
		}
		if r.BolusUnit == nil || !ttypes.IsValidBolusUnit(*r.BolusUnit) {
			return fail("bolus_unit must be %s when bolus_value is present", ttypes.UnitBolus)
		}
	} else if r.BolusUnit != nil {
		return fail("bolus_unit set without bolus_value")
	}

	if (r.InfusionLow == nil) != (r.InfusionHigh == nil) {
		return fail("infusion_low and infusion_high must be present together")
	}
	if r.InfusionLow != nil {
		if *r.InfusionLow < 0 || *r.InfusionHigh < 0 {
			return fail("negative infusion range %v-%v", *r.InfusionLow, *r.InfusionHigh)
		}
		if *r.InfusionLow > *r.InfusionHigh {
			return fail("infusion_low %v exceeds infusion_high %v", *r.InfusionLow, *r.InfusionHigh)
		}
		if r.InfusionUnit == nil || !ttypes.IsValidInfusionUnit(*r.InfusionUnit) {
			return fail("invalid infusion_unit")
		}
		if r.InfusionWeightNormalized != (*r.InfusionUnit == ttypes.UnitInfusionPerKg) {
			return fail("infusion_weight_normalized disagrees with infusion_unit %q", *r.InfusionUnit)
		}
	} else if r.InfusionUnit != nil || r.InfusionWeightNormalized {
		return fail("infusion unit set without an infusion range")
	}

	if r.ExtractionConfidence < 0 || r.ExtractionConfidence > 1 {
		return fail("extraction_confidence %v outside [0,1]", r.ExtractionConfidence)
	}

	for _, f := range r.CriticalFlags {
		if !ttypes.IsCritical(f) {
			return fail("%q is not a critical flag", f)
		}
		if !r.HasFlag(f) {
			return fail("critical flag %q missing from validation_flags", f)
		}
	}
	if r.NeedsAdjudication != (len(r.ValidationFlags) > 0) {
		return fail("needs_adjudication disagrees with validation_flags")
	}
	if r.HasCriticalIssues != (len(r.CriticalFlags) > 0) {
		return fail("has_critical_issues disagrees with critical_flags")
	}
	return nil
}

// ValidateSet checks every record and the uniqueness of trial_id.
func ValidateSet(records []*TrialRecord) error {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.TrialID] {
			return errors.NewSchemaError(errors.ErrCodeSchemaDuplicateID, "duplicate trial_id %s", r.TrialID).
				WithDetail(r.TrialID)
		}
		seen[r.TrialID] = true
	}
	return nil
}

// SortByID orders records by trial_id.
func SortByID(records []*TrialRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].TrialID < records[j].TrialID })
}

// ─────────────────────────────────────────────────────────────────────────────
// FlagList
// ─────────────────────────────────────────────────────────────────────────────

// FlagList serializes as a JSON list of flag codes.  On read it also accepts
// a semicolon-joined string or a string holding a JSON list, the encodings
// produced by earlier tabular exports.
type FlagList []string

// MarshalJSON always emits a list, never null.
func (l FlagList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *FlagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("flag list: %w", err)
		}
		*l = cleanFlags(list)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("flag list: %w", err)
		}
		*l = ParseFlagString(s)
		return nil
	}
}

// ParseFlagString decodes the string form of a flag list.
func ParseFlagString(s string) FlagList {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return cleanFlags(list)
		}
	}
	return cleanFlags(strings.Split(s, ";"))
}

// String joins the flags with ";".
func (l FlagList) String() string {
	return strings.Join(l, ";")
}

func cleanFlags(in []string) FlagList {
	var out FlagList
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeFlags sorts and deduplicates flags, dropping blanks.
func NormalizeFlags(flags []string) FlagList {
	set := make(map[string]bool, len(flags))
	out := make(FlagList, 0, len(flags))
	for _, f := range flags {
		f = strings.TrimSpace(f)
		if f == "" || set[f] {
			continue
		}
		set[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

//Personal.AI order the ending
