package trial

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlClass_IsValid(t *testing.T) {
	assert.True(t, ControlPlaceboOrSaline.IsValid())
	assert.True(t, ControlUnclear.IsValid())
	assert.False(t, ControlClass("placebo").IsValid())
}

func TestTimingPhase_Parse(t *testing.T) {
	p, err := ParseTimingPhase(" intra_op ")
	require.NoError(t, err)
	assert.Equal(t, PhaseIntraOp, p)

	_, err = ParseTimingPhase("intraop")
	assert.Error(t, err)
}

func TestCombineRoutes(t *testing.T) {
	tests := []struct {
		name string
		in   []Route
		want Route
	}{
		{"none", nil, RouteUnknown},
		{"single", []Route{RouteIV}, RouteIV},
		{"sorted pair", []Route{RouteIV, RouteIN}, "IN+IV"},
		{"inhalation", []Route{RouteIV, RouteINH}, "INH+IV"},
		{"duplicates", []Route{RouteIV, RouteIV, RoutePO}, "IV+PO"},
		{"unknown ignored", []Route{RouteUnknown}, RouteUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CombineRoutes(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestRoute_IsValid(t *testing.T) {
	assert.True(t, Route("IN+INH+IV").IsValid())
	assert.False(t, Route("IV+IN").IsValid(), "unsorted")
	assert.False(t, Route("IV+IV").IsValid(), "duplicate")
	assert.False(t, Route("SC").IsValid())
	assert.False(t, Route("").IsValid())

	_, err := ParseRoute("epidural")
	assert.Error(t, err)
}

func TestRobCategory(t *testing.T) {
	c, err := ParseRobCategory("Some concerns")
	require.NoError(t, err)
	assert.Equal(t, "some_concerns", c.Slug())
	assert.Equal(t, "low_risk", RobLow.Slug())
	assert.Equal(t, "high_risk", RobHigh.Slug())

	_, err = ParseRobCategory("low risk")
	assert.Error(t, err, "categories are case sensitive")
}

func TestUnits(t *testing.T) {
	assert.True(t, IsValidBolusUnit("mcg/kg"))
	assert.False(t, IsValidBolusUnit("mg/kg"))
	assert.True(t, IsValidInfusionUnit("mcg/h"))
	assert.False(t, IsValidInfusionUnit("mg/kg/h"))
}

func TestCriticalFlags(t *testing.T) {
	assert.True(t, sort.StringsAreSorted(CriticalFlags))
	assert.Len(t, CriticalFlags, 6)
	assert.True(t, IsCritical(FlagMissingNTotal))
	assert.False(t, IsCritical(FlagTimingUnclear))
	assert.False(t, IsCritical(FlagManualAdjudication))
}

//Personal.AI order the ending
