// Package ingest reads the raw inputs of a curation run from disk and turns
// them into typed values.  Format problems that make an input unusable are
// schema errors; optional inputs that are absent yield empty values.
package ingest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Table is a header-indexed grid of text cells.
type Table struct {
	Columns map[string]int
	Rows    [][]string
}

// Cell returns the cleaned cell of row under column, "" when absent.
func (t *Table) Cell(row []string, column string) string {
	i, ok := t.Columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return normalizer.CleanText(row[i])
}

// ReadGrid loads a .csv or .xlsx file as rows of cells.  For workbooks the
// active sheet is read.
func ReadGrid(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbookRows(path)
	case ".csv", ".txt":
		return readCSVRows(path)
	default:
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
			"unsupported table format %q", filepath.Ext(path)).WithDetail(path)
	}
}

func readCSVRows(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "read "+path)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "parse %s: %v", path, err).WithDetail(path)
	}
	return rows, nil
}

func readWorkbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "open workbook %s: %v", path, err).WithDetail(path)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "read workbook %s: %v", path, err).WithDetail(path)
	}
	return rows, nil
}

// ReadTable loads a headed .csv or .xlsx file and checks that every required
// column is present.  Header names are matched as written.
func ReadTable(path string, required []string) (*Table, error) {
	rows, err := ReadGrid(path)
	if err != nil {
		return nil, err
	}
	return NewTable(path, rows, required, normalizer.CleanText)
}

// NewTable indexes rows[0] as the header, mapping each name through norm.
func NewTable(source string, rows [][]string, required []string, norm func(string) string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMissingColumn,
			"%s has no header row", source).WithDetail(source)
	}
	t := &Table{Columns: make(map[string]int, len(rows[0])), Rows: rows[1:]}
	for i, name := range rows[0] {
		name = norm(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := t.Columns[name]; !dup && name != "" {
			t.Columns[name] = i
		}
	}
	var missing []string
	for _, c := range required {
		if _, ok := t.Columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError(errors.ErrCodeSchemaMissingColumn,
			"%s is missing required columns: %s", source, strings.Join(missing, ", ")).WithDetail(source)
	}
	return t, nil
}

// snakeHeader maps "Sample size" and "sample_size" to the same column name.
func snakeHeader(s string) string {
	s = strings.ToLower(normalizer.CleanText(s))
	return strings.ReplaceAll(strings.ReplaceAll(s, " ", "_"), "-", "_")
}

// textColumns are the RawRow fields merged by continuation rows.
var textColumns = trial.RawColumns[:len(trial.RawColumns)-1]

// ReadSupplementaryTable reads the supplementary trial table.  Repeated
// header rows are skipped, rows with an empty study cell continue the
// previous row and rows whose study cell carries no four-digit year are
// dropped.  A missing required column is a schema error.
func ReadSupplementaryTable(path string) ([]trial.RawRow, error) {
	rows, err := ReadGrid(path)
	if err != nil {
		return nil, err
	}
	t, err := NewTable(path, rows, trial.RawColumns, snakeHeader)
	if err != nil {
		return nil, err
	}
	return ParseSupplementaryRows(t, path)
}

// ParseSupplementaryRows converts an indexed table into typed rows.
// sourceFile is used when the table has no source_file column.
func ParseSupplementaryRows(t *Table, sourceFile string) ([]trial.RawRow, error) {
	var out []trial.RawRow
	for i, row := range t.Rows {
		cells := make(map[string]string, len(textColumns))
		for _, c := range textColumns {
			cells[c] = t.Cell(row, c)
		}
		if isHeaderRow(cells) {
			continue
		}
		if cells["study"] == "" {
			if len(out) > 0 {
				mergeContinuation(&out[len(out)-1], cells)
			}
			continue
		}
		if !normalizer.HasYear(cells["study"]) {
			continue
		}

		pageText := t.Cell(row, "source_page")
		page, err := strconv.Atoi(pageText)
		if err != nil || page < 0 {
			return nil, errors.NewSchemaError(errors.ErrCodeSchemaMalformed,
				"%s row %d: invalid source_page %q", sourceFile, i+2, pageText).WithDetail(sourceFile)
		}
		src := t.Cell(row, "source_file")
		if src == "" {
			src = sourceFile
		}
		out = append(out, trial.RawRow{
			Study:              cells["study"],
			SampleSize:         cells["sample_size"],
			Country:            cells["country"],
			InterventionArm:    cells["intervention_arm"],
			InterventionEvents: cells["intervention_events"],
			ControlArm:         cells["control_arm"],
			ControlEvents:      cells["control_events"],
			Timing:             cells["timing"],
			Mode:               cells["mode"],
			AssessmentTool:     cells["assessment_tool"],
			PostopICUCare:      cells["postop_icu_care"],
			SourcePage:         page,
			SourceFile:         src,
		})
	}
	return out, nil
}

func isHeaderRow(cells map[string]string) bool {
	return strings.Contains(strings.ToLower(cells["study"]), "study") &&
		strings.Contains(strings.ToLower(cells["sample_size"]), "sample")
}

func mergeContinuation(r *trial.RawRow, cells map[string]string) {
	fields := map[string]*string{
		"study":               &r.Study,
		"sample_size":         &r.SampleSize,
		"country":             &r.Country,
		"intervention_arm":    &r.InterventionArm,
		"intervention_events": &r.InterventionEvents,
		"control_arm":         &r.ControlArm,
		"control_events":      &r.ControlEvents,
		"timing":              &r.Timing,
		"mode":                &r.Mode,
		"assessment_tool":     &r.AssessmentTool,
		"postop_icu_care":     &r.PostopICUCare,
	}
	for _, c := range textColumns {
		extra := cells[c]
		if extra == "" {
			continue
		}
		dst := fields[c]
		if *dst == "" {
			*dst = extra
		} else {
			*dst = normalizer.CleanText(*dst + " " + extra)
		}
	}
}

//Personal.AI order the ending
