package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/DexAtlas/internal/intelligence/classifier"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ReadOptional returns the contents of path.  ok is false when path is empty
// or the file does not exist.
func ReadOptional(path string) (data []byte, ok bool, err error) {
	if path == "" {
		return nil, false, nil
	}
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, errors.ErrCodeIO, "read "+path)
	}
	return data, true, nil
}

// ReadComparatorRules loads the comparator rule file.  The file is required.
func ReadComparatorRules(path string) (classifier.ComparatorRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return classifier.ComparatorRules{}, errors.Wrap(err, errors.ErrCodeIO, "read comparator rules "+path)
	}
	rules, err := classifier.ParseComparatorRules(data)
	if err != nil {
		return rules, errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "%s: %v", path, err).WithDetail(path)
	}
	return rules, nil
}

// ReadReferenceList returns the text of a numbered reference list, read from
// a PDF or a plain text file.  ok is false when the file is absent.
func ReadReferenceList(path string) (text string, ok bool, err error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if _, statErr := os.Stat(path); statErr != nil {
			if os.IsNotExist(statErr) {
				return "", false, nil
			}
			return "", false, errors.Wrap(statErr, errors.ErrCodeIO, "stat "+path)
		}
		text, err = readPDFLines(path)
		if err != nil {
			return "", false, err
		}
		return text, true, nil
	}
	data, ok, err := ReadOptional(path)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(data), true, nil
}

//Personal.AI order the ending
