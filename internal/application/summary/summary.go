// Package summary computes pooled and risk-of-bias stratified metrics over the
// curated record set.  Both summaries run the same aggregation, differing only
// in the record filter.
package summary

import (
	"math"
	"sort"
	"time"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

// Dose bands of the infusion midpoint (mcg/kg/h).
const (
	BandNotReported         = "not_reported"
	BandNotWeightNormalized = "not_weight_normalized"
	Band0To02               = "0-0.2"
	Band02To05              = "0.2-0.5"
	Band05To08              = "0.5-0.8"
	BandAbove08             = ">0.8"
)

// Category is one weighted share of a categorical field.
type Category struct {
	Category     string  `json:"category"`
	WeightedN    float64 `json:"weighted_n"`
	WeightedProp float64 `json:"weighted_prop"`
}

// Missingness counts records whose field is absent or unresolved.
type Missingness struct {
	BolusMissing    int `json:"bolus_missing"`
	InfusionMissing int `json:"infusion_missing"`
	TimingMissing   int `json:"timing_missing"`
	RouteMissing    int `json:"route_missing"`
}

// Spread describes weight-normalized infusion midpoints.  Quantiles use
// linear interpolation; all are nil when no record qualifies.
type Spread struct {
	Median  *float64 `json:"median"`
	Q1      *float64 `json:"q1"`
	Q3      *float64 `json:"q3"`
	NTrials int      `json:"n_trials"`
}

// Metrics is the metric set of one record subset.
type Metrics struct {
	NTrials                      int         `json:"n_trials"`
	NParticipants                int         `json:"n_participants"`
	NMissingNTotal               int         `json:"n_missing_n_total"`
	Missingness                  Missingness `json:"missingness"`
	DoseBandsWeighted            []Category  `json:"dose_bands_weighted"`
	TimingPhaseWeighted          []Category  `json:"timing_phase_weighted"`
	RouteWeighted                []Category  `json:"route_weighted"`
	InfusionMidpointDistribution Spread      `json:"infusion_midpoint_distribution"`
}

// Overall is the pooled summary.
type Overall struct {
	GeneratedAtUTC string `json:"generated_at_utc"`
	Metrics
}

// ByRob holds one Metrics per RoB category.
type ByRob struct {
	GeneratedAtUTC string  `json:"generated_at_utc"`
	LowRisk        Metrics `json:"low_risk"`
	SomeConcerns   Metrics `json:"some_concerns"`
	HighRisk       Metrics `json:"high_risk"`
}

// Summarizer computes summaries.  The clock stamps generated_at_utc.
type Summarizer struct {
	clock  func() time.Time
	logger logging.Logger
}

// NewSummarizer returns a Summarizer; a nil clock means time.Now.
func NewSummarizer(clock func() time.Time, logger logging.Logger) *Summarizer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Summarizer{clock: clock, logger: logger}
}

// Summarize returns the pooled and the RoB-stratified summaries.
func (s *Summarizer) Summarize(records []*trial.TrialRecord) (*Overall, *ByRob) {
	stamp := s.clock().UTC().Format(time.RFC3339)
	all := func(*trial.TrialRecord) bool { return true }
	rob := func(c ttypes.RobCategory) func(*trial.TrialRecord) bool {
		return func(r *trial.TrialRecord) bool { return r.RobOverallStd == c }
	}

	overall := &Overall{GeneratedAtUTC: stamp, Metrics: Compute(records, all)}
	byRob := &ByRob{
		GeneratedAtUTC: stamp,
		LowRisk:        Compute(records, rob(ttypes.RobLow)),
		SomeConcerns:   Compute(records, rob(ttypes.RobSomeConcerns)),
		HighRisk:       Compute(records, rob(ttypes.RobHigh)),
	}
	s.logger.Info("summary computed",
		logging.Stage("summarize"),
		logging.Int("trials", overall.NTrials),
		logging.Int("participants", overall.NParticipants),
		logging.Int("missing_n_total", overall.NMissingNTotal))
	return overall, byRob
}

// Compute aggregates the records accepted by keep.  Records with a missing
// or non-positive n_total count toward n_trials, missingness and the
// midpoint spread, but carry no weight in the weighted distributions.
func Compute(records []*trial.TrialRecord, keep func(*trial.TrialRecord) bool) Metrics {
	var m Metrics
	var midpoints []float64
	band, timing, route := newWeighted(), newWeighted(), newWeighted()
	for _, r := range records {
		if !keep(r) {
			continue
		}
		m.NTrials++
		if r.BolusValue == nil {
			m.Missingness.BolusMissing++
		}
		if r.InfusionLow == nil {
			m.Missingness.InfusionMissing++
		}
		if r.TimingPhase == ttypes.PhaseUnknown {
			m.Missingness.TimingMissing++
		}
		if r.RouteStd == ttypes.RouteUnknown {
			m.Missingness.RouteMissing++
		}
		if mid, ok := r.InfusionMidpoint(); ok {
			midpoints = append(midpoints, mid)
		}

		if r.NTotal == nil || *r.NTotal <= 0 {
			m.NMissingNTotal++
			continue
		}
		w := float64(*r.NTotal)
		m.NParticipants += *r.NTotal
		band.add(DoseBand(r), w)
		timing.add(string(r.TimingPhase), w)
		route.add(string(r.RouteStd), w)
	}
	m.DoseBandsWeighted = band.categories()
	m.TimingPhaseWeighted = timing.categories()
	m.RouteWeighted = route.categories()
	m.InfusionMidpointDistribution = spread(midpoints)
	return m
}

// DoseBand buckets the record's infusion midpoint.
func DoseBand(r *trial.TrialRecord) string {
	if r.InfusionLow == nil || r.InfusionHigh == nil {
		return BandNotReported
	}
	mid, ok := r.InfusionMidpoint()
	if !ok {
		return BandNotWeightNormalized
	}
	switch {
	case mid <= 0.2:
		return Band0To02
	case mid <= 0.5:
		return Band02To05
	case mid <= 0.8:
		return Band05To08
	default:
		return BandAbove08
	}
}

type weighted struct {
	sums  map[string]float64
	total float64
}

func newWeighted() *weighted { return &weighted{sums: map[string]float64{}} }

func (w *weighted) add(category string, weight float64) {
	w.sums[category] += weight
	w.total += weight
}

// categories sorts by weighted_n descending, then by category.
func (w *weighted) categories() []Category {
	out := make([]Category, 0, len(w.sums))
	for c, n := range w.sums {
		prop := 0.0
		if w.total > 0 {
			prop = n / w.total
		}
		out = append(out, Category{Category: c, WeightedN: round6(n), WeightedProp: round6(prop)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeightedN != out[j].WeightedN {
			return out[i].WeightedN > out[j].WeightedN
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func spread(values []float64) Spread {
	if len(values) == 0 {
		return Spread{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q := func(p float64) *float64 {
		v := round6(Quantile(sorted, p))
		return &v
	}
	return Spread{Median: q(0.5), Q1: q(0.25), Q3: q(0.75), NTrials: len(sorted)}
}

// Quantile returns the p-quantile of sorted values with linear
// interpolation between closest ranks.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

//Personal.AI order the ending
