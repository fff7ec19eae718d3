// internal/application/extraction/builder.go
//
// Record Builder: turns one typed supplementary-table row, its matched RoB
// workbook entry and optional full-text enrichment into a canonical
// TrialRecord with flags and an extraction-confidence score.
//
// Dependencies:
//   Depends on: intelligence/normalizer, intelligence/classifier, domain/trial
//   Depended by: application/pipeline

package extraction

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/intelligence/classifier"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Decision records what the builder did with a row.
type Decision string

const (
	DecisionBuilt              Decision = "built"
	DecisionNoDexArm           Decision = "no_dex_arm"
	DecisionComparatorExcluded Decision = "comparator_excluded"
)

// Policy holds the switches that change what the builder emits.
type Policy struct {
	// RetainUnclearComparator keeps rows whose comparator is unclear.  They
	// carry the critical comparator_not_placebo flag.
	RetainUnclearComparator bool
	Bands                   trial.Bands
}

// DefaultPolicy excludes unclear comparators and uses the default bands.
func DefaultPolicy() Policy {
	return Policy{Bands: trial.DefaultBands()}
}

// Enrichment is the dose information read from a trial's own PDF.
type Enrichment struct {
	Path string
	Dose normalizer.DoseParse
}

// NewEnrichment parses full text; ok is false when the text yields neither a
// bolus nor an infusion.
func NewEnrichment(path, text string) (Enrichment, bool) {
	dose := normalizer.ParseDose(text)
	if !dose.HasBolus() && !dose.HasInfusion() {
		return Enrichment{}, false
	}
	return Enrichment{Path: path, Dose: dose}, true
}

// FulltextIndex maps study keys derived from PDF file names to enrichments.
// texts maps a PDF path to its extracted text.  Paths are visited in sorted
// order and the first usable document for a key wins.
func FulltextIndex(texts map[string]string) map[string]Enrichment {
	paths := make([]string, 0, len(texts))
	for p := range texts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make(map[string]Enrichment, len(paths))
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		key := normalizer.StudyKey(stem)
		if key == "" {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		if e, ok := NewEnrichment(p, texts[p]); ok {
			out[key] = e
		}
	}
	return out
}

// BuildRecord builds the canonical record of one row.  rob is nil when the
// study is absent from the workbook; fulltext is nil when no usable PDF was
// found.  Rows without a dexmedetomidine arm, and rows whose comparator is
// not placebo or saline, yield a nil record and the reason.
func BuildRecord(row trial.RawRow, comparator *classifier.ComparatorClassifier, rob *classifier.RobEntry, fulltext *Enrichment, p Policy) (*trial.TrialRecord, Decision) {
	if !classifier.IsDexArm(row.InterventionArm) {
		return nil, DecisionNoDexArm
	}

	label := normalizer.CleanStudyLabel(row.Study)
	key := normalizer.StudyKey(label)

	// Arms and comparator.
	arm := classifier.SelectDexArm(row.InterventionArm)
	control := normalizer.CleanText(row.ControlArm)
	class := comparator.Classify(control)
	if class != ttypes.ControlPlaceboOrSaline {
		if !(class == ttypes.ControlUnclear && p.RetainUnclearComparator) {
			return nil, DecisionComparatorExcluded
		}
	}

	rec := &trial.TrialRecord{
		TrialID:           trial.NewTrialID(key, row.SourcePage),
		StudyLabel:        label,
		Year:              normalizer.ParseYear(label),
		Country:           normalizer.CleanText(row.Country),
		NTotal:            normalizer.ParseNTotal(row.SampleSize),
		DexArmTextRaw:     arm.Text,
		ControlArmTextRaw: control,
		ControlClass:      class,
		SourcePage:        row.SourcePage,
		SourceFile:        row.SourceFile,
	}

	var flags []string
	if arm.Reduced {
		flags = append(flags, ttypes.FlagMultiDexArmReduced)
	}

	// Dosing.
	dose := normalizer.ParseDose(arm.Text)
	bolusFrom, infusionFrom := dose, dose
	if fulltext != nil {
		used := false
		if fulltext.Dose.HasBolus() {
			bolusFrom, used = fulltext.Dose, true
		}
		if fulltext.Dose.HasInfusion() {
			infusionFrom, used = fulltext.Dose, true
		}
		if used {
			rec.SourceFile = joinSource(rec.SourceFile, fulltext.Path)
		}
	}
	rec.SetBolus(bolusFrom.BolusValue)
	flags = append(flags, bolusFrom.BolusFlags...)

	low, high := infusionFrom.InfusionLow, infusionFrom.InfusionHigh
	if low != nil && high != nil && *low > *high {
		low, high = high, low
		flags = append(flags, ttypes.FlagInfusionRangeInvalid)
	}
	rec.SetInfusion(low, high, infusionFrom.InfusionWeightNormalized)
	flags = append(flags, infusionFrom.InfusionFlags...)

	// Timing and route.
	rec.TimingRaw = normalizer.CleanText(row.Timing)
	rec.RouteRaw = normalizer.CleanText(row.Mode)
	rec.TimingPhase = classifier.ClassifyTiming(rec.TimingRaw, arm.Text)
	rec.RouteStd = classifier.ClassifyRoute(rec.RouteRaw, arm.Text)

	// Risk of bias.
	robResult := classifier.StandardizeRob(rob)
	rec.RobOverallRaw = robResult.Raw
	rec.RobOverallStd = robResult.Std
	flags = append(flags, robResult.Flags...)

	// Outcomes passthrough.
	rec.InterventionEvents = normalizer.CleanText(row.InterventionEvents)
	rec.ControlEvents = normalizer.CleanText(row.ControlEvents)
	rec.AssessmentTool = normalizer.CleanText(row.AssessmentTool)
	rec.PostopICUCare = normalizer.CleanText(row.PostopICUCare)

	flags = append(flags, trial.EvaluateRules(rec, p.Bands)...)
	rec.ExtractionConfidence = trial.ExtractionConfidence(rec, robResult.Defaulted)
	rec.Finalize(flags, trial.CriticalOf(flags))
	return rec, DecisionBuilt
}

func joinSource(base, extra string) string {
	if base == "" {
		return extra
	}
	return base + ";" + extra
}

//Personal.AI order the ending
