package artifacts

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// TableMeta is the sidecar written next to every interim table.
type TableMeta struct {
	TargetParquet  string `json:"target_parquet"`
	FallbackCSV    string `json:"fallback_csv"`
	ParquetWritten bool   `json:"parquet_written"`
	RowCount       int    `json:"row_count"`
	ColumnCount    int    `json:"column_count"`
	ParquetError   string `json:"parquet_error,omitempty"`
}

// FallbackPath returns the CSV written when path cannot be written as Parquet.
func FallbackPath(path string) string { return path + ".csv" }

// MetaPath returns the sidecar path of an interim table.
func MetaPath(path string) string { return path + ".meta.json" }

// Tabular describes how a row type is written as CSV.
type Tabular[T any] struct {
	Columns []string
	Cells   func(T) []string
	FromRow func(idx *Index, row []string) (T, error)
}

// WriteTable writes rows to path as Parquet.  When Parquet is disabled or
// fails, the rows go to the CSV fallback instead.  The sidecar is written in
// both cases so the choice is never silent.
func WriteTable[T any](path string, rows []T, tab Tabular[T], parquetEnabled bool) (*TableMeta, error) {
	meta := &TableMeta{
		TargetParquet: path,
		FallbackCSV:   FallbackPath(path),
		RowCount:      len(rows),
		ColumnCount:   len(tab.Columns),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "create "+filepath.Dir(path))
	}

	if parquetEnabled {
		if err := parquet.WriteFile(path, rows); err != nil {
			meta.ParquetError = err.Error()
			_ = os.Remove(path)
		} else {
			meta.ParquetWritten = true
			_ = os.Remove(meta.FallbackCSV)
		}
	} else {
		meta.ParquetError = "parquet output disabled"
	}

	if !meta.ParquetWritten {
		cells := make([][]string, 0, len(rows))
		for _, r := range rows {
			cells = append(cells, tab.Cells(r))
		}
		if err := WriteCSV(meta.FallbackCSV, tab.Columns, cells); err != nil {
			return nil, err
		}
	}
	if err := WriteJSON(MetaPath(path), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// ReadTable reads an interim table, trying the Parquet file first and then
// its CSV fallback.
func ReadTable[T any](path string, tab Tabular[T]) ([]T, error) {
	if _, err := os.Stat(path); err == nil {
		rows, err := parquet.ReadFile[T](path)
		if err != nil {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "read %s: %v", path, err).WithDetail(path)
		}
		return rows, nil
	}
	fallback := FallbackPath(path)
	if _, err := os.Stat(fallback); err != nil {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "neither parquet nor fallback csv exists for "+path).WithDetail(path)
	}
	grid, err := readCSV(fallback)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(fallback, grid, tab.Columns)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(idx.Rows))
	for _, row := range idx.Rows {
		v, err := tab.FromRow(idx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RawRowTable writes typed supplementary-table rows.
var RawRowTable = Tabular[trial.RawRow]{
	Columns: append(append([]string{}, trial.RawColumns...), "source_file"),
	Cells:   trial.RawRow.Cells,
	FromRow: func(t *Index, row []string) (trial.RawRow, error) {
		page, err := strconv.Atoi(t.Cell(row, "source_page"))
		if err != nil {
			return trial.RawRow{}, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
				"invalid source_page %q", t.Cell(row, "source_page"))
		}
		return trial.RawRow{
			Study:              t.Cell(row, "study"),
			SampleSize:         t.Cell(row, "sample_size"),
			Country:            t.Cell(row, "country"),
			InterventionArm:    t.Cell(row, "intervention_arm"),
			InterventionEvents: t.Cell(row, "intervention_events"),
			ControlArm:         t.Cell(row, "control_arm"),
			ControlEvents:      t.Cell(row, "control_events"),
			Timing:             t.Cell(row, "timing"),
			Mode:               t.Cell(row, "mode"),
			AssessmentTool:     t.Cell(row, "assessment_tool"),
			PostopICUCare:      t.Cell(row, "postop_icu_care"),
			SourcePage:         page,
			SourceFile:         t.Cell(row, "source_file"),
		}, nil
	},
}

//Personal.AI order the ending
