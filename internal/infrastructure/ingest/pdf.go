package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ReadPDFText returns the cleaned plain text of the first maxPages pages of
// a PDF, one line per page.  maxPages <= 0 reads every page.
func ReadPDFText(path string, maxPages int) (string, error) {
	var pages []string
	err := withPDF(path, func(r *pdf.Reader) error {
		n := r.NumPage()
		if maxPages > 0 && maxPages < n {
			n = maxPages
		}
		for i := 1; i <= n; i++ {
			p := r.Page(i)
			if p.V.IsNull() {
				continue
			}
			s, err := p.GetPlainText(nil)
			if err != nil {
				return err
			}
			pages = append(pages, normalizer.CleanText(s))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}

// readPDFLines returns the text of every page with its visual rows kept as
// lines.
func readPDFLines(path string) (string, error) {
	var lines []string
	err := withPDF(path, func(r *pdf.Reader) error {
		for i := 1; i <= r.NumPage(); i++ {
			p := r.Page(i)
			if p.V.IsNull() {
				continue
			}
			rows, err := p.GetTextByRow()
			if err != nil {
				return err
			}
			for _, row := range rows {
				var b strings.Builder
				for _, t := range row.Content {
					b.WriteString(t.S)
				}
				lines = append(lines, b.String())
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func withPDF(path string, fn func(r *pdf.Reader) error) (err error) {
	defer func() {
		// the reader panics on some malformed streams
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeSchemaMalformed, "read pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "open pdf "+path)
	}
	defer f.Close()
	if err := fn(r); err != nil {
		return errors.Wrap(err, errors.ErrCodeSchemaMalformed, "extract text from "+path)
	}
	return nil
}

// ReadPDFDir extracts text from every *.pdf directly under dir.  Unreadable
// documents are logged and skipped.  A missing directory yields an empty map.
func ReadPDFDir(dir string, maxPages int, logger logging.Logger) (map[string]string, error) {
	out := map[string]string{}
	if dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeIO, "list "+dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	for _, p := range paths {
		text, err := ReadPDFText(p, maxPages)
		if err != nil {
			logger.Warn("skipping unreadable trial pdf", logging.String("path", p), logging.Err(err))
			continue
		}
		out[p] = text
	}
	return out, nil
}

//Personal.AI order the ending
