package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// SHA256File returns the hex sha256 digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeIO, "open "+path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeIO, "hash "+path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteChecksums hashes the published artifacts present in dir and writes
// the manifest to out.  Absent artifacts are left out of the manifest.
func WriteChecksums(dir, out string) (map[string]string, error) {
	sums := make(map[string]string, len(PublishedFiles))
	for _, name := range PublishedFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(err, errors.ErrCodeIO, "stat "+p)
		}
		sum, err := SHA256File(p)
		if err != nil {
			return nil, err
		}
		sums[name] = sum
	}
	if err := WriteJSON(out, sums); err != nil {
		return nil, err
	}
	return sums, nil
}

// VerifyChecksums recomputes the digests listed in the manifest at path.
func VerifyChecksums(dir, path string) error {
	var sums map[string]string
	if err := ReadJSON(path, &sums); err != nil {
		return err
	}
	for _, name := range PublishedFiles {
		want, ok := sums[name]
		if !ok {
			continue
		}
		got, err := SHA256File(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if got != want {
			return errors.Newf(errors.ErrCodeChecksumMismatch, "%s: checksum %s does not match manifest %s", name, got, want).WithDetail(name)
		}
	}
	return nil
}

// gateState is the part of the validation report the publish steps read.
type gateState struct {
	GatePassed          *bool `json:"gate_passed"`
	NUnresolvedCritical int   `json:"n_unresolved_critical"`
}

// CheckGate refuses when the validation report in dir is missing or shows a
// blocked gate.
func CheckGate(dir string) error {
	p := filepath.Join(dir, ValidationFile)
	var st gateState
	if err := ReadJSON(p, &st); err != nil {
		if errors.IsCode(err, errors.ErrCodeArtifactMissing) {
			return errors.New(errors.ErrCodeReportMissing, "validation report not found; run validate first").WithDetail(p)
		}
		return err
	}
	if st.GatePassed == nil {
		return errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "%s has no gate_passed field", p).WithDetail(p)
	}
	if !*st.GatePassed {
		return errors.NewBuildBlocked(st.NUnresolvedCritical, nil)
	}
	return nil
}

// Sync copies the published artifacts from processedDir to docsDir.  It
// refuses when the gate did not pass.  Absent artifacts are skipped.
func Sync(processedDir, docsDir string, logger logging.Logger) ([]string, error) {
	if err := CheckGate(processedDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "create "+docsDir)
	}
	var copied []string
	for _, name := range PublishedFiles {
		src := filepath.Join(processedDir, name)
		data, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("artifact missing, not synced", logging.String("artifact", name))
				continue
			}
			return copied, errors.Wrap(err, errors.ErrCodeIO, "read "+src)
		}
		if err := writeAtomic(filepath.Join(docsDir, name), data); err != nil {
			return copied, err
		}
		copied = append(copied, name)
	}
	logger.Info("artifacts synced", logging.Stage("sync"),
		logging.String("docs_dir", docsDir), logging.Strings("files", copied))
	return copied, nil
}

//Personal.AI order the ending
