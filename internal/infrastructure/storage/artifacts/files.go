// Package artifacts writes and reads the files a curation run produces:
// JSON and CSV outputs, Parquet interim tables with a CSV fallback, the
// checksum manifest and the docs data copy.
package artifacts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/turtacn/DexAtlas/pkg/errors"
)

// Artifact file names.
const (
	InterimRawFile      = "interim_trials_raw.parquet"
	InterimParsedFile   = "interim_trials_parsed.parquet"
	UnmatchedRobFile    = "unmatched_rob_keys.json"
	ReferenceLinksFile  = "reference_links.json"
	CuratedFile         = "trials_curated.json"
	ReviewQueueFile     = "review_queue.csv"
	ValidationFile      = "validation_report.json"
	SummaryOverallFile  = "summary_overall.json"
	SummaryByRobFile    = "summary_by_rob.json"
	ChecksumsFile       = "checksums.json"
	ArmLevelFile        = "delirium_prevalence_arm_level.csv"
	LinkageReportFile   = "delirium_prevalence_linkage_report.csv"
	LinkageCoverageFile = "delirium_prevalence_coverage_summary.json"
	MetaBundleFile      = "meta_analysis_bundle.json"
)

// PublishedFiles are the artifacts that are checksummed, synced and
// published, in manifest order.
var PublishedFiles = []string{
	CuratedFile,
	SummaryOverallFile,
	SummaryByRobFile,
	ReviewQueueFile,
	ValidationFile,
}

// WriteJSON writes v as indented JSON with a trailing newline.  The file is
// replaced atomically.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode "+filepath.Base(path))
	}
	return writeAtomic(path, append(data, '\n'))
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrCodeArtifactMissing, "artifact not found: "+path)
		}
		return errors.Wrap(err, errors.ErrCodeIO, "read "+path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "decode %s: %v", path, err).WithDetail(path)
	}
	return nil
}

// WriteCSV writes a header and rows.  The file is replaced atomically.
func WriteCSV(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode "+filepath.Base(path))
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode "+filepath.Base(path))
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "create "+dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "create temp file in "+dir)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeIO, "write "+path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "write "+path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "chmod "+path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "rename "+path)
	}
	return nil
}

//Personal.AI order the ending
