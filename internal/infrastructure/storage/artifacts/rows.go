package artifacts

import (
	"bytes"
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/pkg/errors"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Index is a header-indexed CSV grid.
type Index struct {
	Columns map[string]int
	Rows    [][]string
}

// NewIndex indexes grid[0] as the header and checks the required columns.
func NewIndex(source string, grid [][]string, required []string) (*Index, error) {
	if len(grid) == 0 {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMissingColumn, "%s has no header row", source).WithDetail(source)
	}
	idx := &Index{Columns: make(map[string]int, len(grid[0])), Rows: grid[1:]}
	for i, c := range grid[0] {
		idx.Columns[c] = i
	}
	for _, c := range required {
		if _, ok := idx.Columns[c]; !ok {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaMissingColumn,
				"%s is missing column %s", source, c).WithDetail(source)
		}
	}
	return idx, nil
}

// Cell returns the cell of row under column.
func (x *Index) Cell(row []string, column string) string {
	i, ok := x.Columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "read "+path)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	grid, err := r.ReadAll()
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "parse %s: %v", path, err).WithDetail(path)
	}
	return grid, nil
}

// ParsedRow is the flat interim form of a built record.  Flags are joined
// with ";".
type ParsedRow struct {
	TrialID                  string   `parquet:"trial_id"`
	StudyLabel               string   `parquet:"study_label"`
	Year                     *int64   `parquet:"year,optional"`
	Country                  string   `parquet:"country"`
	NTotal                   *int64   `parquet:"n_total,optional"`
	DexArmTextRaw            string   `parquet:"dex_arm_text_raw"`
	ControlArmTextRaw        string   `parquet:"control_arm_text_raw"`
	ControlClass             string   `parquet:"control_class"`
	BolusValue               *float64 `parquet:"bolus_value,optional"`
	BolusUnit                *string  `parquet:"bolus_unit,optional"`
	InfusionLow              *float64 `parquet:"infusion_low,optional"`
	InfusionHigh             *float64 `parquet:"infusion_high,optional"`
	InfusionUnit             *string  `parquet:"infusion_unit,optional"`
	InfusionWeightNormalized bool     `parquet:"infusion_weight_normalized"`
	TimingRaw                string   `parquet:"timing_raw"`
	TimingPhase              string   `parquet:"timing_phase"`
	RouteRaw                 string   `parquet:"route_raw"`
	RouteStd                 string   `parquet:"route_std"`
	RobOverallRaw            string   `parquet:"rob_overall_raw"`
	RobOverallStd            string   `parquet:"rob_overall_std"`
	ExtractionConfidence     float64  `parquet:"extraction_confidence"`
	ValidationFlags          string   `parquet:"validation_flags"`
	CriticalFlags            string   `parquet:"critical_flags"`
	NeedsAdjudication        bool     `parquet:"needs_adjudication"`
	HasCriticalIssues        bool     `parquet:"has_critical_issues"`
	SourcePage               int64    `parquet:"source_page"`
	SourceFile               string   `parquet:"source_file"`
	InterventionEvents       string   `parquet:"intervention_events"`
	ControlEvents            string   `parquet:"control_events"`
	AssessmentTool           string   `parquet:"assessment_tool"`
	PostopICUCare            string   `parquet:"postop_icu_care"`
}

// NewParsedRow flattens r.
func NewParsedRow(r *trial.TrialRecord) ParsedRow {
	return ParsedRow{
		TrialID:                  r.TrialID,
		StudyLabel:               r.StudyLabel,
		Year:                     int64Ptr(r.Year),
		Country:                  r.Country,
		NTotal:                   int64Ptr(r.NTotal),
		DexArmTextRaw:            r.DexArmTextRaw,
		ControlArmTextRaw:        r.ControlArmTextRaw,
		ControlClass:             string(r.ControlClass),
		BolusValue:               r.BolusValue,
		BolusUnit:                r.BolusUnit,
		InfusionLow:              r.InfusionLow,
		InfusionHigh:             r.InfusionHigh,
		InfusionUnit:             r.InfusionUnit,
		InfusionWeightNormalized: r.InfusionWeightNormalized,
		TimingRaw:                r.TimingRaw,
		TimingPhase:              string(r.TimingPhase),
		RouteRaw:                 r.RouteRaw,
		RouteStd:                 string(r.RouteStd),
		RobOverallRaw:            r.RobOverallRaw,
		RobOverallStd:            string(r.RobOverallStd),
		ExtractionConfidence:     r.ExtractionConfidence,
		ValidationFlags:          r.ValidationFlags.String(),
		CriticalFlags:            r.CriticalFlags.String(),
		NeedsAdjudication:        r.NeedsAdjudication,
		HasCriticalIssues:        r.HasCriticalIssues,
		SourcePage:               int64(r.SourcePage),
		SourceFile:               r.SourceFile,
		InterventionEvents:       r.InterventionEvents,
		ControlEvents:            r.ControlEvents,
		AssessmentTool:           r.AssessmentTool,
		PostopICUCare:            r.PostopICUCare,
	}
}

// Record rebuilds the record a row was flattened from.
func (p ParsedRow) Record() *trial.TrialRecord {
	return &trial.TrialRecord{
		TrialID:                  p.TrialID,
		StudyLabel:               p.StudyLabel,
		Year:                     intPtr(p.Year),
		Country:                  p.Country,
		NTotal:                   intPtr(p.NTotal),
		DexArmTextRaw:            p.DexArmTextRaw,
		ControlArmTextRaw:        p.ControlArmTextRaw,
		ControlClass:             ttypes.ControlClass(p.ControlClass),
		BolusValue:               p.BolusValue,
		BolusUnit:                p.BolusUnit,
		InfusionLow:              p.InfusionLow,
		InfusionHigh:             p.InfusionHigh,
		InfusionUnit:             p.InfusionUnit,
		InfusionWeightNormalized: p.InfusionWeightNormalized,
		TimingRaw:                p.TimingRaw,
		TimingPhase:              ttypes.TimingPhase(p.TimingPhase),
		RouteRaw:                 p.RouteRaw,
		RouteStd:                 ttypes.Route(p.RouteStd),
		RobOverallRaw:            p.RobOverallRaw,
		RobOverallStd:            ttypes.RobCategory(p.RobOverallStd),
		ExtractionConfidence:     p.ExtractionConfidence,
		ValidationFlags:          trial.ParseFlagString(p.ValidationFlags),
		CriticalFlags:            trial.ParseFlagString(p.CriticalFlags),
		NeedsAdjudication:        p.NeedsAdjudication,
		HasCriticalIssues:        p.HasCriticalIssues,
		SourcePage:               int(p.SourcePage),
		SourceFile:               p.SourceFile,
		InterventionEvents:       p.InterventionEvents,
		ControlEvents:            p.ControlEvents,
		AssessmentTool:           p.AssessmentTool,
		PostopICUCare:            p.PostopICUCare,
	}
}

var parsedColumns = []string{
	"trial_id", "study_label", "year", "country", "n_total",
	"dex_arm_text_raw", "control_arm_text_raw", "control_class",
	"bolus_value", "bolus_unit", "infusion_low", "infusion_high", "infusion_unit", "infusion_weight_normalized",
	"timing_raw", "timing_phase", "route_raw", "route_std", "rob_overall_raw", "rob_overall_std",
	"extraction_confidence", "validation_flags", "critical_flags", "needs_adjudication", "has_critical_issues",
	"source_page", "source_file",
	"intervention_events", "control_events", "assessment_tool", "postop_icu_care",
}

// ParsedRowTable writes flattened records.
var ParsedRowTable = Tabular[ParsedRow]{
	Columns: parsedColumns,
	Cells: func(p ParsedRow) []string {
		return []string{
			p.TrialID, p.StudyLabel, fmtInt(p.Year), p.Country, fmtInt(p.NTotal),
			p.DexArmTextRaw, p.ControlArmTextRaw, p.ControlClass,
			fmtFloat(p.BolusValue), fmtString(p.BolusUnit), fmtFloat(p.InfusionLow), fmtFloat(p.InfusionHigh),
			fmtString(p.InfusionUnit), strconv.FormatBool(p.InfusionWeightNormalized),
			p.TimingRaw, p.TimingPhase, p.RouteRaw, p.RouteStd, p.RobOverallRaw, p.RobOverallStd,
			strconv.FormatFloat(p.ExtractionConfidence, 'f', -1, 64), p.ValidationFlags, p.CriticalFlags,
			strconv.FormatBool(p.NeedsAdjudication), strconv.FormatBool(p.HasCriticalIssues),
			strconv.FormatInt(p.SourcePage, 10), p.SourceFile,
			p.InterventionEvents, p.ControlEvents, p.AssessmentTool, p.PostopICUCare,
		}
	},
	FromRow: func(x *Index, row []string) (ParsedRow, error) {
		var perr error
		num := func(col string) *float64 {
			s := x.Cell(row, col)
			if s == "" {
				return nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil && perr == nil {
				perr = errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "column %s: invalid number %q", col, s)
			}
			return &v
		}
		integer := func(col string) *int64 {
			if f := num(col); f != nil {
				v := int64(*f)
				return &v
			}
			return nil
		}
		str := func(col string) *string {
			if s := x.Cell(row, col); s != "" {
				return &s
			}
			return nil
		}
		flag := func(col string) bool { return strings.EqualFold(x.Cell(row, col), "true") }

		p := ParsedRow{
			TrialID:                  x.Cell(row, "trial_id"),
			StudyLabel:               x.Cell(row, "study_label"),
			Year:                     integer("year"),
			Country:                  x.Cell(row, "country"),
			NTotal:                   integer("n_total"),
			DexArmTextRaw:            x.Cell(row, "dex_arm_text_raw"),
			ControlArmTextRaw:        x.Cell(row, "control_arm_text_raw"),
			ControlClass:             x.Cell(row, "control_class"),
			BolusValue:               num("bolus_value"),
			BolusUnit:                str("bolus_unit"),
			InfusionLow:              num("infusion_low"),
			InfusionHigh:             num("infusion_high"),
			InfusionUnit:             str("infusion_unit"),
			InfusionWeightNormalized: flag("infusion_weight_normalized"),
			TimingRaw:                x.Cell(row, "timing_raw"),
			TimingPhase:              x.Cell(row, "timing_phase"),
			RouteRaw:                 x.Cell(row, "route_raw"),
			RouteStd:                 x.Cell(row, "route_std"),
			RobOverallRaw:            x.Cell(row, "rob_overall_raw"),
			RobOverallStd:            x.Cell(row, "rob_overall_std"),
			ValidationFlags:          x.Cell(row, "validation_flags"),
			CriticalFlags:            x.Cell(row, "critical_flags"),
			NeedsAdjudication:        flag("needs_adjudication"),
			HasCriticalIssues:        flag("has_critical_issues"),
			SourceFile:               x.Cell(row, "source_file"),
			InterventionEvents:       x.Cell(row, "intervention_events"),
			ControlEvents:            x.Cell(row, "control_events"),
			AssessmentTool:           x.Cell(row, "assessment_tool"),
			PostopICUCare:            x.Cell(row, "postop_icu_care"),
		}
		if c := num("extraction_confidence"); c != nil {
			p.ExtractionConfidence = *c
		}
		if pg := integer("source_page"); pg != nil {
			p.SourcePage = *pg
		}
		return p, perr
	},
}

// ParsedRows flattens records.
func ParsedRows(records []*trial.TrialRecord) []ParsedRow {
	out := make([]ParsedRow, 0, len(records))
	for _, r := range records {
		out = append(out, NewParsedRow(r))
	}
	return out
}

func int64Ptr(p *int) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

func intPtr(p *int64) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

func fmtInt(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func fmtFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func fmtString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

//Personal.AI order the ending
