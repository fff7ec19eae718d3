package references

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
)

func TestParseReferenceNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Momeni 2021100", 100},
		{"van Norden 2021132", 132},
		{"Liu 202179", 79},
		{"Abd Ellatif 20241", 1},
	}
	for _, tt := range tests {
		got := ParseReferenceNumber(tt.in)
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.want, *got, tt.in)
	}
	assert.Nil(t, ParseReferenceNumber("Li 2023"))
	assert.Nil(t, ParseReferenceNumber(""))
}

func TestExtractURL(t *testing.T) {
	entry := "Momeni M, et al. Br J Anaesth. 2021;126(3):665-73. " +
		"doi: https://dx.doi.org/10.1016/j.bja.2020.10.041 PT - Article"
	assert.Equal(t, "https://dx.doi.org/10.1016/j.bja.2020.10.041", ExtractURL(entry))

	entry = "He Y, et al. ... 2022;12(3):396-99. doi: 10.3969/j.issn.2095-1264.2022.03.17"
	assert.Equal(t, "https://doi.org/10.3969/j.issn.2095-1264.2022.03.17", ExtractURL(entry))

	assert.Equal(t, "https://doi.org/10.1000/xyz", ExtractURL("Smith. doi:10.1000/xyz."))
	assert.Empty(t, ExtractURL("Unpublished thesis, 2019."))
}

func TestParseList(t *testing.T) {
	text := "References\n" +
		"1. Li X, et al. Trial one.\n" +
		"   doi: 10.1000/one\n" +
		"2) Momeni M. Trial two. https://doi.org/10.1000/two\n" +
		"\n" +
		"1. Duplicate entry.\n"
	got := ParseList(text)
	require.Len(t, got, 2)
	assert.Equal(t, "Li X, et al. Trial one. doi: 10.1000/one", got[1])
	assert.Equal(t, "https://doi.org/10.1000/two", ExtractURL(got[2]))
}

func TestBuild(t *testing.T) {
	records := []*trial.TrialRecord{
		{TrialID: "momeni_2021_p5", StudyLabel: "Momeni 2021"},
		{TrialID: "li_2023_p2", StudyLabel: "Li 2023"},
		{TrialID: "he_2022_p3", StudyLabel: "He 2022"},
	}
	raw := map[string]string{
		"momeni_2021_p5": "Momeni 2021100",
		"li_2023_p2":     "Li 2023",
		"he_2022_p3":     "He 20227",
	}
	entries := map[int]string{100: "Momeni. doi: 10.1016/j.bja.2020.10.041"}

	links := Build(records, raw, entries)
	require.Len(t, links, 3)
	assert.Equal(t, "he_2022_p3", links[0].TrialID)
	require.NotNil(t, links[0].ReferenceNumber)
	assert.Equal(t, 7, *links[0].ReferenceNumber)
	assert.Nil(t, links[0].ReferenceURL)

	assert.Nil(t, links[1].ReferenceNumber)

	require.NotNil(t, links[2].ReferenceURL)
	assert.Equal(t, "https://doi.org/10.1016/j.bja.2020.10.041", *links[2].ReferenceURL)

	assert.Empty(t, Build(records, raw, nil))
}

//Personal.AI order the ending
