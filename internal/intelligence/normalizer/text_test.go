package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  Dex\n0.5  mcg/kg\r\n bolus ", "Dex 0.5 mcg/kg bolus"},
		{"ﬁrst", "first"}, // NFKC ligature
		{"Li 2023", "Li 2023"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), tt.in)
	}
}

func TestCleanStudyLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Abd Ellatif 20241", "Abd Ellatif 2024"},
		{"Momeni 2021100", "Momeni 2021"},
		{"Li 2023", "Li 2023"},
		{"Kim\n 201912", "Kim 2019"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanStudyLabel(tt.in), tt.in)
	}
}

func TestStudyKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Abd Ellatif 2024", "abd_ellatif_2024"},
		{"Abd Ellatif 20241", "abd_ellatif_2024"},
		{"van Norden 2021", "van_norden_2021"},
		{"Müller-Lüdenscheid 2018", "muller_ludenscheid_2018"},
		{"li_2023", "li_2023"},
		{"O'Neil  2020", "o_neil_2020"},
		{"Unknown study", "unknown_study"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StudyKey(tt.in), tt.in)
	}
}

func TestParseNTotal(t *testing.T) {
	n := ParseNTotal("n = 120 (60/60)")
	require.NotNil(t, n)
	assert.Equal(t, 120, *n)

	assert.Nil(t, ParseNTotal("not reported"))
	zero := ParseNTotal("0")
	require.NotNil(t, zero)
	assert.Equal(t, 0, *zero)
}

func TestParseYear(t *testing.T) {
	y := ParseYear("Li 2023")
	require.NotNil(t, y)
	assert.Equal(t, 2023, *y)
	assert.Nil(t, ParseYear("Li et al."))
	assert.True(t, HasYear("Smith 1999a"))
	assert.False(t, HasYear("Smith 99"))
}

//Personal.AI order the ending
