package classifier

import (
	"regexp"
	"strings"

	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
)

var (
	armMarkerRe = regexp.MustCompile(`(?i)arm\s*\d+\s*:`)
	dexRe       = regexp.MustCompile(`(?i)dexmedetomidine|\bdex\b`)
)

// IsDexArm reports whether text mentions dexmedetomidine.
func IsDexArm(text string) bool {
	return dexRe.MatchString(text)
}

// ArmSelection is the representative dexmedetomidine arm of a row.
type ArmSelection struct {
	Text    string
	DexArms int

	// Reduced is set when more than one dex arm was present and all but the
	// first-listed one were dropped.
	Reduced bool
}

// SelectDexArm splits intervention text at "Arm N:" markers and keeps the
// first-listed arm mentioning dexmedetomidine.  Text without markers, or
// whose arms never mention dexmedetomidine, is returned whole.
func SelectDexArm(text string) ArmSelection {
	text = normalizer.CleanText(text)
	var dexParts []string
	for _, part := range splitArms(text) {
		if IsDexArm(part) {
			dexParts = append(dexParts, part)
		}
	}
	switch len(dexParts) {
	case 0:
		return ArmSelection{Text: text}
	case 1:
		return ArmSelection{Text: dexParts[0], DexArms: 1}
	default:
		return ArmSelection{Text: dexParts[0], DexArms: len(dexParts), Reduced: true}
	}
}

// splitArms cuts text before every arm marker.  Text preceding the first
// marker is kept as its own part.
func splitArms(text string) []string {
	locs := armMarkerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	var parts []string
	add := func(s string) {
		if s = strings.Trim(s, " ,;"); s != "" {
			parts = append(parts, s)
		}
	}
	add(text[:locs[0][0]])
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		add(text[loc[0]:end])
	}
	return parts
}

//Personal.AI order the ending
