package trial

import "strconv"

// RawRow is one typed row of the supplementary table after header skipping
// and continuation merging.  Text cells are already whitespace-cleaned.
type RawRow struct {
	Study              string `json:"study" parquet:"study"`
	SampleSize         string `json:"sample_size" parquet:"sample_size"`
	Country            string `json:"country" parquet:"country"`
	InterventionArm    string `json:"intervention_arm" parquet:"intervention_arm"`
	InterventionEvents string `json:"intervention_events" parquet:"intervention_events"`
	ControlArm         string `json:"control_arm" parquet:"control_arm"`
	ControlEvents      string `json:"control_events" parquet:"control_events"`
	Timing             string `json:"timing" parquet:"timing"`
	Mode               string `json:"mode" parquet:"mode"`
	AssessmentTool     string `json:"assessment_tool" parquet:"assessment_tool"`
	PostopICUCare      string `json:"postop_icu_care" parquet:"postop_icu_care"`
	SourcePage         int    `json:"source_page" parquet:"source_page"`
	SourceFile         string `json:"source_file" parquet:"source_file"`
}

// RawColumns lists the required table columns in table order.
var RawColumns = []string{
	"study",
	"sample_size",
	"country",
	"intervention_arm",
	"intervention_events",
	"control_arm",
	"control_events",
	"timing",
	"mode",
	"assessment_tool",
	"postop_icu_care",
	"source_page",
}

// Cells returns the row as strings in RawColumns order followed by
// source_file, for tabular writers.
func (r RawRow) Cells() []string {
	return []string{
		r.Study, r.SampleSize, r.Country, r.InterventionArm, r.InterventionEvents,
		r.ControlArm, r.ControlEvents, r.Timing, r.Mode, r.AssessmentTool,
		r.PostopICUCare, strconv.Itoa(r.SourcePage), r.SourceFile,
	}
}

// OverrideWarning is a non-fatal adjudication problem surfaced in the
// validation report.
type OverrideWarning struct {
	StudyKey string `json:"study_key"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

//Personal.AI order the ending
