// Package errors provides the unified error type and factory functions for
// DexAtlas.  Every layer uses AppError as the carrier for structured error
// information so that the CLI can map failures to exit codes and the preview
// API can map them to HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

const stackDepth = 32

func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the structured error type used throughout DexAtlas.
//
// Usage:
//
//	return errors.New(errors.ErrCodeSchemaMissingColumn, "table is missing column intervention_arm")
//	return errors.Wrap(err, errors.ErrCodeIO, "failed to read RoB workbook")
type AppError struct {
	Code    ErrorCode
	Message string

	// Detail carries supplementary context such as a file path or trial_id.
	Detail string

	Cause error

	// Stack is captured by New and Wrap.  It is not part of Error().
	Stack string
}

// Error formats as "[CODE] message: detail" with the cause appended.
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a copy of e with Detail set.  Nil-safe.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a copy of e with Cause set.  Nil-safe.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Factories
// ─────────────────────────────────────────────────────────────────────────────

// New constructs an AppError with a stack snapshot.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap wraps err.  A nil err yields nil.  With CodeUnknown the code of an
// wrapped AppError is kept.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Inspection
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any AppError in err's chain has code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode returns the code of the first AppError in err's chain.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// IsSchemaError reports whether err's chain contains a SchemaError.
func IsSchemaError(err error) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && IsSchemaCode(ae.Code) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsBuildBlocked reports whether err's chain contains a BuildBlocked error.
func IsBuildBlocked(err error) bool {
	return IsCode(err, ErrCodeBuildBlocked)
}

// ExitCodeFor maps err to a process exit status.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsBuildBlocked(err):
		return ExitBuildBlocked
	default:
		return ExitFailure
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain constructors
// ─────────────────────────────────────────────────────────────────────────────

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message, Stack: captureStack(1)}
}

// Internal constructs a CodeInternal AppError.
func Internal(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Stack: captureStack(1)}
}

// NewSchemaError constructs a SchemaError with the given SCH_* code.
func NewSchemaError(code ErrorCode, format string, args ...interface{}) *AppError {
	if !IsSchemaCode(code) {
		code = ErrCodeSchemaInvariant
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack(1)}
}

// NewBuildBlocked reports how many records carry unresolved critical flags
// and which flags are responsible, e.g.
// "build blocked: 3 record(s) with unresolved critical flags (bolus_out_of_range=2, missing_n_total=1)".
func NewBuildBlocked(unresolved int, flagCounts map[string]int) *AppError {
	keys := make([]string, 0, len(flagCounts))
	for k := range flagCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, flagCounts[k]))
	}
	msg := fmt.Sprintf("build blocked: %d record(s) with unresolved critical flags", unresolved)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return &AppError{Code: ErrCodeBuildBlocked, Message: msg, Stack: captureStack(1)}
}

// NewOverrideKeyMiss constructs the warning raised for an adjudication key
// that matched no record.
func NewOverrideKeyMiss(studyKey string) *AppError {
	return &AppError{
		Code:    ErrCodeOverrideKeyMiss,
		Message: "override key matched no record",
		Detail:  studyKey,
		Stack:   captureStack(1),
	}
}

//Personal.AI order the ending
