package classifier

import (
	"regexp"

	"github.com/turtacn/DexAtlas/pkg/types/trial"
)

var (
	preOpCueRe   = regexp.MustCompile(`(?i)\b(?:prior|before|pre[- ]?op\w*|premedicat\w*|induction)\b`)
	intraOpCueRe = regexp.MustCompile(`(?i)\b(?:during|intra[- ]?op\w*)\b`)
	postOpCueRe  = regexp.MustCompile(`(?i)\b(?:after|post[- ]?op\w*|recovery|icu|pacu|pca)\b`)
	periOpCueRe  = regexp.MustCompile(`(?i)\bperi[- ]?op\w*\b`)
)

// ClassifyTiming returns the administration phase.  The structured timing
// column wins whenever it alone yields a phase; the dex-arm text is only
// consulted when the column is empty or carries no cue.
func ClassifyTiming(structured, armText string) trial.TimingPhase {
	if p := phaseFromCues(structured); p != trial.PhaseUnknown {
		return p
	}
	return phaseFromCues(armText)
}

func phaseFromCues(text string) trial.TimingPhase {
	if text == "" {
		return trial.PhaseUnknown
	}
	if periOpCueRe.MatchString(text) {
		return trial.PhasePeriMulti
	}
	var phases []trial.TimingPhase
	if preOpCueRe.MatchString(text) {
		phases = append(phases, trial.PhasePreOp)
	}
	if intraOpCueRe.MatchString(text) {
		phases = append(phases, trial.PhaseIntraOp)
	}
	if postOpCueRe.MatchString(text) {
		phases = append(phases, trial.PhasePostOp)
	}
	switch len(phases) {
	case 0:
		return trial.PhaseUnknown
	case 1:
		return phases[0]
	default:
		return trial.PhasePeriMulti
	}
}

//Personal.AI order the ending
