// Package handlers implements the read-only preview API over the processed
// artifacts of the last curation run.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DexAtlas/pkg/errors"
	"github.com/turtacn/DexAtlas/pkg/types/common"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the standard error response body.
type ErrorResponse = common.ErrorDetail

// parsePagination extracts page and page_size from query parameters.
// Invalid values fall back to the defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, pageSize := 1, defaultPageSize
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= maxPageSize {
		pageSize = v
	}
	return page, pageSize
}

// writeAppError maps application errors to HTTP statuses.  Unmapped and
// internal errors are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: string(code), Message: err.Error()})
}

//Personal.AI order the ending
