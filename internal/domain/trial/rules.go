package trial

import (
	"math"
	"strings"

	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Bands are the plausibility ranges of the dose rules, inclusive at both ends.
type Bands struct {
	BolusMin    float64
	BolusMax    float64
	InfusionMin float64
	InfusionMax float64
}

// DefaultBands returns bolus [0.01, 10] mcg/kg and infusion [0.01, 5] mcg/kg/h.
func DefaultBands() Bands {
	return Bands{BolusMin: 0.01, BolusMax: 10, InfusionMin: 0.01, InfusionMax: 5}
}

// EvaluateRules returns the QA rule flags that fire on the record's current
// values, sorted.  The result includes both critical and non-critical flags.
func EvaluateRules(r *TrialRecord, b Bands) []string {
	var flags []string
	if r.ControlClass != ttypes.ControlPlaceboOrSaline {
		flags = append(flags, ttypes.FlagComparatorNotPlacebo)
	}
	if r.BolusValue != nil && (*r.BolusValue < b.BolusMin || *r.BolusValue > b.BolusMax) {
		flags = append(flags, ttypes.FlagBolusOutOfRange)
	}
	if r.InfusionLow != nil && r.InfusionHigh != nil && *r.InfusionLow > *r.InfusionHigh {
		flags = append(flags, ttypes.FlagInfusionRangeInvalid)
	}
	if mid, ok := r.InfusionMidpoint(); ok && (mid < b.InfusionMin || mid > b.InfusionMax) {
		flags = append(flags, ttypes.FlagInfusionOutOfRange)
	}
	if strings.TrimSpace(r.StudyLabel) == "" || r.Year == nil {
		flags = append(flags, ttypes.FlagMissingStudyOrYear)
	}
	if r.NTotal == nil || *r.NTotal <= 0 {
		flags = append(flags, ttypes.FlagMissingNTotal)
	}
	if r.BolusValue == nil {
		flags = append(flags, ttypes.FlagBolusMissing)
	}
	if r.InfusionLow == nil {
		flags = append(flags, ttypes.FlagInfusionMissing)
	}
	if r.TimingPhase == ttypes.PhaseUnknown {
		flags = append(flags, ttypes.FlagTimingUnclear)
	}
	if r.RouteStd == ttypes.RouteUnknown {
		flags = append(flags, ttypes.FlagRouteUnclear)
	}
	return NormalizeFlags(flags)
}

// CriticalOf returns the critical subset of flags.
func CriticalOf(flags []string) []string {
	var out []string
	for _, f := range flags {
		if ttypes.IsCritical(f) {
			out = append(out, f)
		}
	}
	return out
}

// RobDefaulted reports whether the RoB judgement was defaulted rather than read
// from the workbook.
func RobDefaulted(flags []string) bool {
	for _, f := range flags {
		if f == ttypes.FlagRobMissingDefaulted || f == ttypes.FlagRobUnmatched {
			return true
		}
	}
	return false
}

// confidenceChecks is the fixed checklist behind ExtractionConfidence.
const confidenceChecks = 6

// ExtractionConfidence is the fraction of resolved checklist items: positive
// n_total, bolus, infusion, known timing phase, known route and a RoB
// judgement that was not defaulted.  Rounded to four decimals.
func ExtractionConfidence(r *TrialRecord, robDefaulted bool) float64 {
	score := 0
	if r.NTotal != nil && *r.NTotal > 0 {
		score++
	}
	if r.BolusValue != nil {
		score++
	}
	if r.InfusionLow != nil {
		score++
	}
	if r.TimingPhase != ttypes.PhaseUnknown {
		score++
	}
	if r.RouteStd != ttypes.RouteUnknown {
		score++
	}
	if !robDefaulted {
		score++
	}
	return math.Round(float64(score)/confidenceChecks*1e4) / 1e4
}

//Personal.AI order the ending
