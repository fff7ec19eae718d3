package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	ttypes "github.com/turtacn/DexAtlas/pkg/types/trial"
)

func ptr[T any](v T) *T { return &v }

type recOpt func(r *trial.TrialRecord)

func withN(n int) recOpt { return func(r *trial.TrialRecord) { r.NTotal = ptr(n) } }
func noN() recOpt        { return func(r *trial.TrialRecord) { r.NTotal = nil } }
func withRob(c ttypes.RobCategory) recOpt {
	return func(r *trial.TrialRecord) { r.RobOverallStd = c }
}
func withInfusion(low, high float64, perKg bool) recOpt {
	return func(r *trial.TrialRecord) { r.SetInfusion(&low, &high, perKg) }
}
func withTiming(p ttypes.TimingPhase) recOpt { return func(r *trial.TrialRecord) { r.TimingPhase = p } }

func rec(opts ...recOpt) *trial.TrialRecord {
	r := &trial.TrialRecord{
		TrialID:       "x_p1",
		ControlClass:  ttypes.ControlPlaceboOrSaline,
		TimingPhase:   ttypes.PhaseIntraOp,
		RouteStd:      ttypes.RouteIV,
		RobOverallStd: ttypes.RobLow,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func TestDoseBand(t *testing.T) {
	tests := []struct {
		name string
		r    *trial.TrialRecord
		want string
	}{
		{"absent", rec(), BandNotReported},
		{"fixed rate", rec(withInfusion(0.4, 0.4, false)), BandNotWeightNormalized},
		{"edge 0.2", rec(withInfusion(0.1, 0.3, true)), Band0To02},
		{"0.2-0.5", rec(withInfusion(0.2, 0.7, true)), Band02To05},
		{"0.5-0.8", rec(withInfusion(0.7, 0.7, true)), Band05To08},
		{"above", rec(withInfusion(1, 1.5, true)), BandAbove08},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DoseBand(tt.r), tt.name)
	}
}

func TestCompute_WeightedDistributions(t *testing.T) {
	records := []*trial.TrialRecord{
		rec(withN(100), withInfusion(0.2, 0.4, true)),
		rec(withN(50), withInfusion(0.6, 0.6, true), withTiming(ttypes.PhasePostOp)),
		rec(withN(50), withTiming(ttypes.PhasePostOp)),
		rec(noN(), withInfusion(1, 1, true)),
		rec(withN(0), withTiming(ttypes.PhaseUnknown)),
	}
	m := Compute(records, func(*trial.TrialRecord) bool { return true })

	assert.Equal(t, 5, m.NTrials)
	assert.Equal(t, 200, m.NParticipants)
	assert.Equal(t, 2, m.NMissingNTotal, "missing and non-positive n_total are counted, not dropped")
	assert.Equal(t, Missingness{BolusMissing: 5, InfusionMissing: 2, TimingMissing: 1}, m.Missingness)

	assert.Equal(t, []Category{
		{Category: string(ttypes.PhaseIntraOp), WeightedN: 100, WeightedProp: 0.5},
		{Category: string(ttypes.PhasePostOp), WeightedN: 100, WeightedProp: 0.5},
	}, m.TimingPhaseWeighted)
	assert.Equal(t, []Category{
		{Category: Band02To05, WeightedN: 100, WeightedProp: 0.5},
		{Category: Band05To08, WeightedN: 50, WeightedProp: 0.25},
		{Category: BandNotReported, WeightedN: 50, WeightedProp: 0.25},
	}, m.DoseBandsWeighted)
	assert.Equal(t, []Category{{Category: "IV", WeightedN: 200, WeightedProp: 1}}, m.RouteWeighted)

	spread := m.InfusionMidpointDistribution
	assert.Equal(t, 3, spread.NTrials, "midpoints do not need n_total")
	assert.Equal(t, 0.6, *spread.Median)
	assert.Equal(t, 0.45, *spread.Q1)
	assert.Equal(t, 0.8, *spread.Q3)
}

func TestCompute_Empty(t *testing.T) {
	m := Compute(nil, func(*trial.TrialRecord) bool { return true })
	assert.Zero(t, m.NTrials)
	assert.Empty(t, m.DoseBandsWeighted)
	assert.Nil(t, m.InfusionMidpointDistribution.Median)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dose_bands_weighted":[]`)
	assert.Contains(t, string(data), `"median":null`)
}

func TestQuantile(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.75, Quantile(xs, 0.25))
	assert.Equal(t, 2.5, Quantile(xs, 0.5))
	assert.Equal(t, 3.25, Quantile(xs, 0.75))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.9))
}

func TestSummarizer_ByRobUsesSameAggregation(t *testing.T) {
	records := []*trial.TrialRecord{
		rec(withN(40), withInfusion(0.3, 0.3, true)),
		rec(withN(60), withRob(ttypes.RobHigh)),
		rec(withN(20), withRob(ttypes.RobHigh), withInfusion(0.9, 0.9, true)),
	}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	s := NewSummarizer(func() time.Time { return fixed }, nil)
	overall, byRob := s.Summarize(records)

	assert.Equal(t, "2024-05-01T11:00:00Z", overall.GeneratedAtUTC)
	assert.Equal(t, overall.GeneratedAtUTC, byRob.GeneratedAtUTC)
	assert.Equal(t, 3, overall.NTrials)
	assert.Equal(t, 120, overall.NParticipants)

	high := Compute(records, func(r *trial.TrialRecord) bool { return r.RobOverallStd == ttypes.RobHigh })
	assert.Equal(t, high, byRob.HighRisk)
	assert.Equal(t, 1, byRob.LowRisk.NTrials)
	assert.Zero(t, byRob.SomeConcerns.NTrials)

	data, err := json.Marshal(overall)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"generated_at_utc":"2024-05-01T11:00:00Z","n_trials":3,`, string(data))
}

//Personal.AI order the ending
