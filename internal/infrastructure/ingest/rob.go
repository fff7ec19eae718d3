package ingest

import (
	"github.com/xuri/excelize/v2"

	"github.com/turtacn/DexAtlas/internal/intelligence/classifier"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ReadRobWorkbook reads the RoB2 workbook.  Row 1 is the header; column 1
// holds the study id.  overallCol and fallbackCol are 1-based column numbers
// of the overall judgement and its fallback.
func ReadRobWorkbook(path string, overallCol, fallbackCol int) ([]classifier.RobEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "open RoB workbook %s: %v", path, err).WithDetail(path)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "read RoB workbook %s: %v", path, err).WithDetail(path)
	}
	return RobEntriesFromRows(rows, overallCol, fallbackCol), nil
}

// RobEntriesFromRows converts workbook rows, header included, into entries.
// Rows without a study id are skipped.
func RobEntriesFromRows(rows [][]string, overallCol, fallbackCol int) []classifier.RobEntry {
	cell := func(row []string, col int) string {
		if col < 1 || col > len(row) {
			return ""
		}
		return normalizer.CleanText(row[col-1])
	}
	var out []classifier.RobEntry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id := cell(row, 1)
		if id == "" {
			continue
		}
		out = append(out, classifier.RobEntry{
			StudyKey:    normalizer.StudyKey(id),
			StudyLabel:  id,
			OverallRaw:  cell(row, overallCol),
			FallbackRaw: cell(row, fallbackCol),
		})
	}
	return out
}

//Personal.AI order the ending
