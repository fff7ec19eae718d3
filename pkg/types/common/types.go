// Package common holds identifier and error types shared by the preview
// API and the validation report.
package common

import (
	"fmt"

	"github.com/google/uuid"
)

// RunID identifies one curation run.  It is a UUID v4.
type RunID string

// NewRunID generates a new RunID.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// Validate checks that id is a UUID.
func (id RunID) Validate() error {
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	return nil
}

// ErrorDetail is the error body returned by the preview API.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

//Personal.AI order the ending
