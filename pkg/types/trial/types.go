package trial

import (
	"fmt"
	"sort"
	"strings"
)

// ControlClass classifies the comparator arm of a trial.
type ControlClass string

const (
	ControlPlaceboOrSaline ControlClass = "placebo_or_saline"
	ControlActive          ControlClass = "active_control"
	ControlMixed           ControlClass = "mixed_control"
	ControlUnclear         ControlClass = "unclear"
)

// IsValid checks if the ControlClass is valid.
func (c ControlClass) IsValid() bool {
	switch c {
	case ControlPlaceboOrSaline, ControlActive, ControlMixed, ControlUnclear:
		return true
	default:
		return false
	}
}

// TimingPhase is the perioperative phase in which dexmedetomidine is given.
type TimingPhase string

const (
	PhasePreOp     TimingPhase = "pre_op"
	PhaseIntraOp   TimingPhase = "intra_op"
	PhasePostOp    TimingPhase = "post_op"
	PhasePeriMulti TimingPhase = "peri_multi"
	PhaseUnknown   TimingPhase = "unknown"
)

// IsValid checks if the TimingPhase is valid.
func (p TimingPhase) IsValid() bool {
	switch p {
	case PhasePreOp, PhaseIntraOp, PhasePostOp, PhasePeriMulti, PhaseUnknown:
		return true
	default:
		return false
	}
}

// ParseTimingPhase validates s as a TimingPhase.
func ParseTimingPhase(s string) (TimingPhase, error) {
	p := TimingPhase(strings.TrimSpace(s))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid timing phase %q", s)
	}
	return p, nil
}

// Route is a standardized administration route.  Multiple routes are joined
// with "+" in lexical order, e.g. "IN+IV".
type Route string

const (
	RouteIV      Route = "IV"
	RouteIN      Route = "IN"
	RouteINH     Route = "INH"
	RoutePO      Route = "PO"
	RouteIM      Route = "IM"
	RouteUnknown Route = "Unknown"
)

var baseRoutes = map[Route]bool{RouteIV: true, RouteIN: true, RouteINH: true, RoutePO: true, RouteIM: true}

// CombineRoutes joins base routes into their canonical combined form.
func CombineRoutes(routes []Route) Route {
	set := make(map[string]bool, len(routes))
	for _, r := range routes {
		if baseRoutes[r] {
			set[string(r)] = true
		}
	}
	if len(set) == 0 {
		return RouteUnknown
	}
	parts := make([]string, 0, len(set))
	for r := range set {
		parts = append(parts, r)
	}
	sort.Strings(parts)
	return Route(strings.Join(parts, "+"))
}

// IsValid reports whether r is Unknown or a sorted, duplicate-free
// combination of base routes.
func (r Route) IsValid() bool {
	if r == RouteUnknown {
		return true
	}
	if r == "" {
		return false
	}
	parts := strings.Split(string(r), "+")
	for i, p := range parts {
		if !baseRoutes[Route(p)] {
			return false
		}
		if i > 0 && parts[i-1] >= p {
			return false
		}
	}
	return true
}

// ParseRoute validates s as a Route.
func ParseRoute(s string) (Route, error) {
	r := Route(strings.TrimSpace(s))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid route %q", s)
	}
	return r, nil
}

// RobCategory is the RoB2 overall judgement.
type RobCategory string

const (
	RobLow          RobCategory = "Low risk"
	RobSomeConcerns RobCategory = "Some concerns"
	RobHigh         RobCategory = "High risk"
)

// IsValid checks if the RobCategory is valid.
func (c RobCategory) IsValid() bool {
	switch c {
	case RobLow, RobSomeConcerns, RobHigh:
		return true
	default:
		return false
	}
}

// Slug returns the summary key of the category ("Low risk" -> "low_risk").
func (c RobCategory) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(c)), " ", "_")
}

// ParseRobCategory validates s as a RobCategory.
func ParseRobCategory(s string) (RobCategory, error) {
	c := RobCategory(strings.TrimSpace(s))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid RoB category %q", s)
	}
	return c, nil
}

// RobCategories lists categories in reporting order.
var RobCategories = []RobCategory{RobLow, RobSomeConcerns, RobHigh}

// Dose units after normalization.
const (
	UnitBolus         = "mcg/kg"
	UnitInfusionPerKg = "mcg/kg/h"
	UnitInfusionFixed = "mcg/h"
)

// IsValidBolusUnit reports whether u is a normalized bolus unit.
func IsValidBolusUnit(u string) bool { return u == UnitBolus }

// IsValidInfusionUnit reports whether u is a normalized infusion unit.
func IsValidInfusionUnit(u string) bool {
	return u == UnitInfusionPerKg || u == UnitInfusionFixed
}

// ─────────────────────────────────────────────────────────────────────────────
// Flags
// ─────────────────────────────────────────────────────────────────────────────

// Flag is a machine-readable reason a record deserves review.
type Flag = string

const (
	FlagBolusMissing        Flag = "bolus_missing"
	FlagInfusionMissing     Flag = "infusion_missing"
	FlagTimingUnclear       Flag = "timing_unclear"
	FlagRouteUnclear        Flag = "route_unclear"
	FlagBolusUnitMg         Flag = "dose_unit_mg_interpreted_as_mcg"
	FlagInfusionUnitMg      Flag = "infusion_unit_mg_interpreted_as_mcg"
	FlagRobFallbackCol13    Flag = "rob_from_fallback_col13"
	FlagRobMissingDefaulted Flag = "rob_missing_defaulted"
	FlagRobUnmatched        Flag = "rob_unmatched_defaulted"
	FlagMultiDexArmReduced  Flag = "multi_dex_arm_reduced"
	FlagManualAdjudication  Flag = "manual_adjudication_applied"

	FlagComparatorNotPlacebo Flag = "comparator_not_placebo"
	FlagInfusionRangeInvalid Flag = "infusion_range_invalid"
	FlagBolusOutOfRange      Flag = "bolus_out_of_range"
	FlagInfusionOutOfRange   Flag = "infusion_out_of_range"
	FlagMissingStudyOrYear   Flag = "missing_study_or_year"
	FlagMissingNTotal        Flag = "missing_n_total"
)

// CriticalFlags is the closed set of flags that block a strict build.
var CriticalFlags = []Flag{
	FlagBolusOutOfRange,
	FlagComparatorNotPlacebo,
	FlagInfusionOutOfRange,
	FlagInfusionRangeInvalid,
	FlagMissingNTotal,
	FlagMissingStudyOrYear,
}

var criticalSet = func() map[Flag]bool {
	m := make(map[Flag]bool, len(CriticalFlags))
	for _, f := range CriticalFlags {
		m[f] = true
	}
	return m
}()

// IsCritical reports whether f blocks a strict build.
func IsCritical(f Flag) bool { return criticalSet[f] }

//Personal.AI order the ending
