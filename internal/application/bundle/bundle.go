// internal/application/bundle/bundle.go
//
// Forest-plot bundle: joins the linked arm table with per-comparison model
// summaries and precomputes normalized density curves on a shared log-OR
// grid, so the static site never runs any statistics itself.
//
// Dependencies:
//   Depends on: intelligence/normalizer, pkg/errors
//   Depended by: application/pipeline

package bundle

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// SchemaVersion is written into every bundle.
const SchemaVersion = 1

// z975 is the 97.5th percentile of the standard normal.
const z975 = 1.959963984540054

const minSigma = 1e-4

// XTicksOR are the axis ticks drawn by the forest plot.
var XTicksOR = []float64{0.1, 0.3, 1.0, 3.0}

// Required input columns.
var (
	ArmColumns       = []string{"trial_id", "dex_arm_index", "dex_events", "dex_total", "control_events", "control_total"}
	ShrinkageColumns = []string{"trial_id", "dex_arm_index", "median_log_or", "lower_log_or", "upper_log_or"}
	CrudeColumns     = []string{"trial_id", "dex_arm_index", "crude_or", "crude_or_ci_low", "crude_or_ci_high"}
	OverallColumns   = []string{"median", "q2.5", "q97.5"}
)

var pageSuffix = regexp.MustCompile(`_p\d+$`)

// CanonicalTrialID drops the source-page suffix of a trial id.
func CanonicalTrialID(id string) string {
	return pageSuffix.ReplaceAllString(strings.TrimSpace(id), "")
}

// Key identifies one dex-vs-control comparison.
type Key struct {
	TrialID  string
	ArmIndex int
}

func (k Key) String() string { return fmt.Sprintf("%s__arm%d", k.TrialID, k.ArmIndex) }

// Arm is one row of the linked arm-level table.
type Arm struct {
	Key           Key
	StudyLabel    string
	ArmLabel      string
	DexEvents     int
	DexTotal      int
	ControlEvents int
	ControlTotal  int
}

// Interval is a point estimate with its lower and upper bound.
type Interval struct {
	Point float64
	Low   float64
	High  float64
}

// Options shape the shared odds-ratio grid.
type Options struct {
	XMinOR     float64
	XMaxOR     float64
	GridPoints int
}

// Row is one comparison of the bundle.  Model fields are null when either
// model summary is missing for the comparison.
type Row struct {
	ComparisonID       string    `json:"comparison_id"`
	TrialID            string    `json:"trial_id"`
	TrialIDCanonical   string    `json:"trial_id_canonical"`
	StudyLabel         string    `json:"study_label"`
	DexArmIndex        int       `json:"dex_arm_index"`
	DexArmLabel        string    `json:"dex_arm_label"`
	DexEvents          int       `json:"dex_events"`
	DexTotal           int       `json:"dex_total"`
	ControlEvents      int       `json:"control_events"`
	ControlTotal       int       `json:"control_total"`
	HasModel           bool      `json:"has_model"`
	ShrinkageLogOR     *float64  `json:"shrinkage_log_or"`
	ShrinkageLogORLow  *float64  `json:"shrinkage_log_or_low"`
	ShrinkageLogORHigh *float64  `json:"shrinkage_log_or_high"`
	ShrinkageOR        *float64  `json:"shrinkage_or"`
	ShrinkageORLow     *float64  `json:"shrinkage_or_low"`
	ShrinkageORHigh    *float64  `json:"shrinkage_or_high"`
	CrudeOR            *float64  `json:"crude_or"`
	CrudeORLow         *float64  `json:"crude_or_low"`
	CrudeORHigh        *float64  `json:"crude_or_high"`
	DensityNorm        []float64 `json:"density_norm"`
}

// Overall is the pooled odds-ratio summary.
type Overall struct {
	MedianOR    float64   `json:"median_or"`
	LowerOR     float64   `json:"lower_or"`
	UpperOR     float64   `json:"upper_or"`
	MedianLogOR float64   `json:"median_log_or"`
	LowerLogOR  float64   `json:"lower_log_or"`
	UpperLogOR  float64   `json:"upper_log_or"`
	DensityNorm []float64 `json:"density_norm"`
}

// Counts sums the event counts over every row.
type Counts struct {
	DexEvents     int `json:"dex_events"`
	DexTotal      int `json:"dex_total"`
	ControlEvents int `json:"control_events"`
	ControlTotal  int `json:"control_total"`
}

// Coverage reports how many comparisons carry model output.
type Coverage struct {
	NArmRows                  int      `json:"n_arm_rows"`
	NUniqueTrials             int      `json:"n_unique_trials"`
	NRowsWithModel            int      `json:"n_rows_with_model"`
	NRowsMissingModel         int      `json:"n_rows_missing_model"`
	MissingModelComparisonIDs []string `json:"missing_model_comparison_ids"`
}

// Bundle is the JSON payload consumed by the forest plot.
type Bundle struct {
	SchemaVersion int        `json:"schema_version"`
	CreatedAtUTC  string     `json:"created_at_utc"`
	XLimitsOR     [2]float64 `json:"x_limits_or"`
	XTicksOR      []float64  `json:"x_ticks_or"`
	GridOR        []float64  `json:"grid_or"`
	Overall       Overall    `json:"overall"`
	AllCounts     Counts     `json:"all_counts"`
	Coverage      Coverage   `json:"coverage"`
	Rows          []Row      `json:"rows"`
}

// Build joins arms with the shrinkage and crude summaries.  A comparison has
// a model only when both summaries exist for its key.
func Build(arms []Arm, shrinkage, crude map[Key]Interval, overall Interval, opts Options, now time.Time) (*Bundle, error) {
	grid, err := LogORGrid(opts)
	if err != nil {
		return nil, err
	}
	ov, err := buildOverall(overall, grid)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		SchemaVersion: SchemaVersion,
		CreatedAtUTC:  now.UTC().Truncate(time.Second).Format(time.RFC3339),
		XLimitsOR:     [2]float64{opts.XMinOR, opts.XMaxOR},
		XTicksOR:      XTicksOR,
		GridOR:        make([]float64, len(grid)),
		Overall:       ov,
		Rows:          make([]Row, 0, len(arms)),
		Coverage:      Coverage{MissingModelComparisonIDs: []string{}},
	}
	for i, x := range grid {
		b.GridOR[i] = round10(math.Exp(x))
	}

	seen := map[Key]bool{}
	trials := map[string]bool{}
	for _, a := range arms {
		if seen[a.Key] {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaDuplicateID,
				"duplicate arm row for %s", a.Key).WithDetail(a.Key.String())
		}
		seen[a.Key] = true
		if a.DexEvents < 0 || a.DexEvents > a.DexTotal {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
				"dex counts invalid for %s: %d/%d", a.Key, a.DexEvents, a.DexTotal).WithDetail(a.Key.String())
		}
		if a.ControlEvents < 0 || a.ControlEvents > a.ControlTotal {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
				"control counts invalid for %s: %d/%d", a.Key, a.ControlEvents, a.ControlTotal).WithDetail(a.Key.String())
		}

		row := newRow(a)
		s, okS := shrinkage[a.Key]
		c, okC := crude[a.Key]
		if okS && okC {
			row.HasModel = true
			row.ShrinkageLogOR = ptr(s.Point)
			row.ShrinkageLogORLow = ptr(s.Low)
			row.ShrinkageLogORHigh = ptr(s.High)
			row.ShrinkageOR = ptr(math.Exp(s.Point))
			row.ShrinkageORLow = ptr(math.Exp(s.Low))
			row.ShrinkageORHigh = ptr(math.Exp(s.High))
			row.CrudeOR = ptr(c.Point)
			row.CrudeORLow = ptr(c.Low)
			row.CrudeORHigh = ptr(c.High)
			row.DensityNorm = DensityNorm(grid, s.Point, SigmaFromInterval(s.Low, s.High))
			b.Coverage.NRowsWithModel++
		} else {
			b.Coverage.MissingModelComparisonIDs = append(b.Coverage.MissingModelComparisonIDs, row.ComparisonID)
		}

		b.AllCounts.DexEvents += a.DexEvents
		b.AllCounts.DexTotal += a.DexTotal
		b.AllCounts.ControlEvents += a.ControlEvents
		b.AllCounts.ControlTotal += a.ControlTotal
		trials[a.Key.TrialID] = true
		b.Rows = append(b.Rows, row)
	}

	sort.SliceStable(b.Rows, func(i, j int) bool {
		li, lj := strings.ToLower(b.Rows[i].StudyLabel), strings.ToLower(b.Rows[j].StudyLabel)
		if li != lj {
			return li < lj
		}
		return b.Rows[i].DexArmIndex < b.Rows[j].DexArmIndex
	})
	b.Coverage.NArmRows = len(b.Rows)
	b.Coverage.NUniqueTrials = len(trials)
	b.Coverage.NRowsMissingModel = len(b.Coverage.MissingModelComparisonIDs)
	return b, nil
}

func newRow(a Arm) Row {
	label := a.StudyLabel
	if label == "" {
		label = strings.ReplaceAll(a.Key.TrialID, "_", " ")
	}
	return Row{
		ComparisonID:     a.Key.String(),
		TrialID:          a.Key.TrialID,
		TrialIDCanonical: a.Key.TrialID,
		StudyLabel:       label,
		DexArmIndex:      a.Key.ArmIndex,
		DexArmLabel:      a.ArmLabel,
		DexEvents:        a.DexEvents,
		DexTotal:         a.DexTotal,
		ControlEvents:    a.ControlEvents,
		ControlTotal:     a.ControlTotal,
		DensityNorm:      []float64{},
	}
}

func buildOverall(iv Interval, grid []float64) (Overall, error) {
	if iv.Point <= 0 || iv.Low <= 0 || iv.High <= 0 {
		return Overall{}, errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
			"overall odds-ratio summary contains non-positive values")
	}
	mu, lo, hi := math.Log(iv.Point), math.Log(iv.Low), math.Log(iv.High)
	return Overall{
		MedianOR:    round10(iv.Point),
		LowerOR:     round10(iv.Low),
		UpperOR:     round10(iv.High),
		MedianLogOR: round10(mu),
		LowerLogOR:  round10(lo),
		UpperLogOR:  round10(hi),
		DensityNorm: DensityNorm(grid, mu, SigmaFromInterval(lo, hi)),
	}, nil
}

// LogORGrid returns GridPoints evenly spaced log odds ratios spanning
// [XMinOR, XMaxOR].
func LogORGrid(opts Options) ([]float64, error) {
	if opts.XMinOR <= 0 || opts.XMaxOR <= opts.XMinOR {
		return nil, errors.New(errors.ErrCodeConfig,
			fmt.Sprintf("odds-ratio limits must satisfy 0 < min < max, got [%g, %g]", opts.XMinOR, opts.XMaxOR))
	}
	if opts.GridPoints < 31 {
		return nil, errors.New(errors.ErrCodeConfig,
			fmt.Sprintf("grid points must be at least 31, got %d", opts.GridPoints))
	}
	lower, upper := math.Log(opts.XMinOR), math.Log(opts.XMaxOR)
	step := (upper - lower) / float64(opts.GridPoints-1)
	grid := make([]float64, opts.GridPoints)
	for i := range grid {
		grid[i] = lower + float64(i)*step
	}
	return grid, nil
}

// SigmaFromInterval converts a 95% interval into a normal standard
// deviation, floored so a degenerate interval still draws a curve.
func SigmaFromInterval(lower, upper float64) float64 {
	return math.Max((upper-lower)/(2*z975), minSigma)
}

// DensityNorm evaluates a normal density on grid scaled so its peak is 1.
func DensityNorm(grid []float64, mu, sigma float64) []float64 {
	out := make([]float64, len(grid))
	peak := 0.0
	for i, x := range grid {
		z := (x - mu) / sigma
		out[i] = math.Exp(-0.5*z*z) / (sigma * math.Sqrt(2*math.Pi))
		peak = math.Max(peak, out[i])
	}
	for i := range out {
		if peak > 0 {
			out[i] = round10(out[i] / peak)
		} else {
			out[i] = 0
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Table parsing
// ─────────────────────────────────────────────────────────────────────────────

type cells struct {
	col map[string]int
	row []string
}

func (c cells) get(name string) string {
	if i, ok := c.col[name]; ok && i < len(c.row) {
		return normalizer.CleanText(c.row[i])
	}
	return ""
}

func (c cells) atoi(name string) (int, error) {
	v := c.get(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f == math.Trunc(f) {
			return int(f), nil
		}
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "invalid integer for %s: %q", name, v).WithDetail(name)
	}
	return n, nil
}

func (c cells) number(name string) (float64, error) {
	v := c.get(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "invalid number for %s: %q", name, v).WithDetail(name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "non-finite number for %s: %q", name, v).WithDetail(name)
	}
	return f, nil
}

func (c cells) key() (Key, error) {
	idx, err := c.atoi("dex_arm_index")
	if err != nil {
		return Key{}, err
	}
	return Key{TrialID: CanonicalTrialID(c.get("trial_id")), ArmIndex: idx}, nil
}

// ArmsFromRows parses the linked arm-level table.
func ArmsFromRows(col map[string]int, rows [][]string) ([]Arm, error) {
	out := make([]Arm, 0, len(rows))
	for _, r := range rows {
		c := cells{col, r}
		key, err := c.key()
		if err != nil {
			return nil, err
		}
		a := Arm{Key: key, StudyLabel: c.get("study_label"), ArmLabel: c.get("dex_arm_label")}
		for name, dst := range map[string]*int{
			"dex_events": &a.DexEvents, "dex_total": &a.DexTotal,
			"control_events": &a.ControlEvents, "control_total": &a.ControlTotal,
		} {
			if *dst, err = c.atoi(name); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// IntervalsFromRows parses a per-comparison summary whose point, low and high
// columns are named by fields.  Duplicate keys are schema errors.
func IntervalsFromRows(col map[string]int, rows [][]string, fields [3]string) (map[Key]Interval, error) {
	out := make(map[Key]Interval, len(rows))
	for _, r := range rows {
		c := cells{col, r}
		key, err := c.key()
		if err != nil {
			return nil, err
		}
		if _, dup := out[key]; dup {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaDuplicateID,
				"duplicate %s row for %s", fields[0], key).WithDetail(key.String())
		}
		var iv Interval
		for i, dst := range []*float64{&iv.Point, &iv.Low, &iv.High} {
			if *dst, err = c.number(fields[i]); err != nil {
				return nil, err
			}
		}
		out[key] = iv
	}
	return out, nil
}

// Summary column triples for IntervalsFromRows.
var (
	ShrinkageFields = [3]string{"median_log_or", "lower_log_or", "upper_log_or"}
	CrudeFields     = [3]string{"crude_or", "crude_or_ci_low", "crude_or_ci_high"}
)

// OverallFromRows parses the pooled summary, which must hold exactly one row.
func OverallFromRows(col map[string]int, rows [][]string) (Interval, error) {
	if len(rows) != 1 {
		return Interval{}, errors.NewSchemaError(errors.ErrCodeSchemaInvariant,
			"overall summary must contain exactly one row, got %d", len(rows))
	}
	c := cells{col, rows[0]}
	var iv Interval
	var err error
	for i, dst := range []*float64{&iv.Point, &iv.Low, &iv.High} {
		if *dst, err = c.number(OverallColumns[i]); err != nil {
			return Interval{}, err
		}
	}
	return iv, nil
}

func round10(v float64) float64 {
	return math.Round(v*1e10) / 1e10
}

func ptr(v float64) *float64 {
	r := round10(v)
	return &r
}

//Personal.AI order the ending
