package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/DexAtlas/pkg/types/trial"
)

// DoseParse is the result of reading one dexmedetomidine arm description.
// Absent components are nil.
type DoseParse struct {
	BolusValue *float64
	BolusUnit  string

	InfusionLow              *float64
	InfusionHigh             *float64
	InfusionUnit             string
	InfusionWeightNormalized bool

	// BolusFlags and InfusionFlags record unit interpretations per component
	// so that a caller taking one component from another source drops the
	// matching flags too.
	BolusFlags    []string
	InfusionFlags []string
}

// HasBolus reports whether a bolus was found.
func (d DoseParse) HasBolus() bool { return d.BolusValue != nil }

// HasInfusion reports whether an infusion was found.
func (d DoseParse) HasInfusion() bool { return d.InfusionLow != nil }

// Flags returns all unit flags of the parse.
func (d DoseParse) Flags() []string {
	out := make([]string, 0, len(d.BolusFlags)+len(d.InfusionFlags))
	out = append(out, d.BolusFlags...)
	return append(out, d.InfusionFlags...)
}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

const num = `(\d+(?:\.\d+)?)`

var (
	microRe = strings.NewReplacer("µg", "mcg", "μg", "mcg")

	bolusLeadRe  = regexp.MustCompile(`(?:loading\s*dose|loading|bolus)[^\d]{0,20}` + num + `\s*(mg|mcg|ug)\s*/\s*kg`)
	bolusTrailRe = regexp.MustCompile(num + `\s*(mg|mcg|ug)\s*/\s*kg([^.;,]{0,25}?)(?:loading|bolus)`)
	perHourRe    = regexp.MustCompile(`^\s*/\s*(?:h|hr|hour)`)

	infusionRangeRe  = regexp.MustCompile(num + `\s*(?:-|–|to)\s*` + num + `\s*(mg|mcg|ug)\s*/\s*kg\s*/\s*(?:h|hr|hour)`)
	infusionSingleRe = regexp.MustCompile(num + `\s*(mg|mcg|ug)\s*/\s*kg\s*/\s*(?:h|hr|hour)`)
	infusionFixedRe  = regexp.MustCompile(num + `\s*(mg|mcg|ug)\s*/\s*(?:h|hr|hour)`)

	rangeRe = regexp.MustCompile(num + `\s*(?:-|–|to)\s*` + num)
	numRe   = regexp.MustCompile(num)
)

// ParseDose extracts bolus and infusion doses from a dexmedetomidine arm
// description.  Values are normalized to mcg; a value given in mg is
// multiplied by 1000 and always carries a unit-interpretation flag.
func ParseDose(text string) DoseParse {
	var out DoseParse
	t := microRe.Replace(strings.ToLower(text))
	if strings.TrimSpace(t) == "" {
		return out
	}

	if v, unit, ok := parseBolus(t); ok {
		mcg, converted := toMcg(v, unit)
		out.BolusValue = &mcg
		out.BolusUnit = trial.UnitBolus
		if converted {
			out.BolusFlags = append(out.BolusFlags, trial.FlagBolusUnitMg)
		}
	}

	if m := infusionRangeRe.FindStringSubmatch(t); m != nil {
		setInfusion(&out, m[0], m[3], true)
	} else if m := infusionSingleRe.FindStringSubmatch(t); m != nil {
		setInfusion(&out, m[0], m[2], true)
	} else if m := infusionFixedRe.FindStringSubmatch(t); m != nil {
		setInfusion(&out, m[0], m[2], false)
	}
	return out
}

func parseBolus(t string) (float64, string, bool) {
	notPerHour := func(s string, loc []int) bool { return !perHourRe.MatchString(s[loc[1]:]) }
	if loc := findFirst(bolusLeadRe, t, notPerHour); loc != nil {
		v, err := strconv.ParseFloat(t[loc[2]:loc[3]], 64)
		if err == nil {
			return v, t[loc[4]:loc[5]], true
		}
	}
	gapNotPerHour := func(s string, loc []int) bool { return !perHourRe.MatchString(s[loc[6]:loc[7]]) }
	if loc := findFirst(bolusTrailRe, t, gapNotPerHour); loc != nil {
		v, err := strconv.ParseFloat(t[loc[2]:loc[3]], 64)
		if err == nil {
			return v, t[loc[4]:loc[5]], true
		}
	}
	return 0, "", false
}

// findFirst returns the submatch indexes of the leftmost match of re in s
// that accept approves.  A rejected match restarts the scan one byte after
// its start, so overlapping candidates are still considered.
func findFirst(re *regexp.Regexp, s string, accept func(string, []int) bool) []int {
	for offset := 0; offset < len(s); {
		loc := re.FindStringSubmatchIndex(s[offset:])
		if loc == nil {
			return nil
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += offset
			}
		}
		if accept(s, loc) {
			return loc
		}
		offset = loc[0] + 1
	}
	return nil
}

// setInfusion reads the rate span of a matched infusion phrase.
func setInfusion(out *DoseParse, phrase, unit string, perKg bool) {
	low, high := ParseRange(phrase)
	if low == nil {
		return
	}
	lowMcg, converted := toMcg(*low, unit)
	highMcg, _ := toMcg(*high, unit)
	out.InfusionLow = &lowMcg
	out.InfusionHigh = &highMcg
	out.InfusionWeightNormalized = perKg
	if perKg {
		out.InfusionUnit = trial.UnitInfusionPerKg
	} else {
		out.InfusionUnit = trial.UnitInfusionFixed
	}
	if converted {
		out.InfusionFlags = append(out.InfusionFlags, trial.FlagInfusionUnitMg)
	}
}

// toMcg converts value in unit to mcg, reporting whether an mg conversion
// happened.
func toMcg(value float64, unit string) (float64, bool) {
	if unit == "mg" {
		return Round6(value * 1000), true
	}
	return Round6(value), false
}

// Round6 rounds v to six decimal places.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ParseRange reads "0.2-0.7", "0.2 to 0.7" or a single number.  Reversed
// ranges are returned as written.
func ParseRange(s string) (low, high *float64) {
	s = strings.ToLower(s)
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		l, err1 := strconv.ParseFloat(m[1], 64)
		h, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return &l, &h
		}
	}
	if m := numRe.FindString(s); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			h := v
			return &v, &h
		}
	}
	return nil, nil
}

//Personal.AI order the ending
