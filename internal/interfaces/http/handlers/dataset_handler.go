package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DexAtlas/internal/application/validation"
	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// DatasetReader reads the curated artifacts.  Satisfied by
// *pipeline.Pipeline.
type DatasetReader interface {
	ReadCurated() ([]*trial.TrialRecord, error)
	ReadReport() (*validation.Report, error)
}

// DatasetHandler serves the processed artifacts.  Files are read on every
// request so a concurrent watch run is picked up without a restart.
type DatasetHandler struct {
	reader DatasetReader
	dir    string
	logger logging.Logger
}

// NewDatasetHandler serves artifacts from the processed dir.
func NewDatasetHandler(reader DatasetReader, processedDir string, logger logging.Logger) *DatasetHandler {
	if logger == nil {
		panic("handlers: logger is required")
	}
	return &DatasetHandler{reader: reader, dir: processedDir, logger: logger}
}

// TrialPage is the response of ListTrials.
type TrialPage struct {
	Items    []*trial.TrialRecord `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListTrials handles GET /api/v1/trials.  Filters: rob (category label or
// slug), flag (records carrying the validation flag), critical=true (records
// with unresolved critical flags).
func (h *DatasetHandler) ListTrials(c *gin.Context) {
	records, err := h.reader.ReadCurated()
	if err != nil {
		writeAppError(c, err)
		return
	}

	rob := c.Query("rob")
	flag := c.Query("flag")
	var critical *bool
	if v := c.Query("critical"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeAppError(c, errors.New(errors.ErrCodeBadRequest, "critical must be a boolean"))
			return
		}
		critical = &b
	}

	filtered := make([]*trial.TrialRecord, 0, len(records))
	for _, r := range records {
		if rob != "" && !strings.EqualFold(string(r.RobOverallStd), rob) && r.RobOverallStd.Slug() != rob {
			continue
		}
		if flag != "" && !hasFlag(r.ValidationFlags, flag) {
			continue
		}
		if critical != nil && (len(r.CriticalFlags) > 0) != *critical {
			continue
		}
		filtered = append(filtered, r)
	}

	page, pageSize := parsePagination(c)
	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	c.Header("X-Total-Count", strconv.Itoa(len(filtered)))
	c.JSON(http.StatusOK, TrialPage{
		Items:    filtered[start:end],
		Total:    len(filtered),
		Page:     page,
		PageSize: pageSize,
	})
}

func hasFlag(flags trial.FlagList, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// GetTrial handles GET /api/v1/trials/:id.
func (h *DatasetHandler) GetTrial(c *gin.Context) {
	records, err := h.reader.ReadCurated()
	if err != nil {
		writeAppError(c, err)
		return
	}
	id := c.Param("id")
	for _, r := range records {
		if r.TrialID == id {
			c.JSON(http.StatusOK, r)
			return
		}
	}
	writeAppError(c, errors.New(errors.ErrCodeNotFound, "trial not found: "+id))
}

// Validation handles GET /api/v1/validation.
func (h *DatasetHandler) Validation(c *gin.Context) {
	report, err := h.reader.ReadReport()
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Summary handles GET /api/v1/summary.
func (h *DatasetHandler) Summary(c *gin.Context) { h.serveJSON(c, artifacts.SummaryOverallFile) }

// SummaryByRob handles GET /api/v1/summary/by-rob.
func (h *DatasetHandler) SummaryByRob(c *gin.Context) { h.serveJSON(c, artifacts.SummaryByRobFile) }

// Checksums handles GET /api/v1/checksums.
func (h *DatasetHandler) Checksums(c *gin.Context) { h.serveJSON(c, artifacts.ChecksumsFile) }

// Linkage handles GET /api/v1/linkage/coverage.
func (h *DatasetHandler) Linkage(c *gin.Context) { h.serveJSON(c, artifacts.LinkageCoverageFile) }

func (h *DatasetHandler) serveJSON(c *gin.Context, name string) {
	var raw json.RawMessage
	if err := artifacts.ReadJSON(filepath.Join(h.dir, name), &raw); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, raw)
}

// ReviewQueue handles GET /api/v1/review-queue and returns the CSV as is.
func (h *DatasetHandler) ReviewQueue(c *gin.Context) {
	path := filepath.Join(h.dir, artifacts.ReviewQueueFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeAppError(c, errors.Wrap(err, errors.ErrCodeArtifactMissing, "artifact not found: "+artifacts.ReviewQueueFile))
			return
		}
		writeAppError(c, errors.Wrap(err, errors.ErrCodeIO, "read "+artifacts.ReviewQueueFile))
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

//Personal.AI order the ending
