package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies a failure category.  Codes are "<MODULE>_<NNN>" strings.
type ErrorCode string

// String returns the code text.
func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeOK                 ErrorCode = ""
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeIO                 ErrorCode = "COMMON_017"
	ErrCodeConfig             ErrorCode = "COMMON_018"
)

// Schema Error Codes: malformed or inconsistent inputs and records.  Always fatal.
const (
	ErrCodeSchemaMissingColumn ErrorCode = "SCH_001"
	ErrCodeSchemaDuplicateID   ErrorCode = "SCH_002"
	ErrCodeSchemaInvariant     ErrorCode = "SCH_003"
	ErrCodeSchemaMalformed     ErrorCode = "SCH_004"
)

// QA Gate Error Codes
const (
	ErrCodeBuildBlocked    ErrorCode = "QA_001"
	ErrCodeReportMissing   ErrorCode = "QA_002"
	ErrCodeArtifactMissing ErrorCode = "QA_003"
)

// Adjudication Error Codes
const (
	ErrCodeOverrideKeyMiss ErrorCode = "ADJ_001"
	ErrCodeOverrideInvalid ErrorCode = "ADJ_002"
)

// Publish Error Codes
const (
	ErrCodeObjectStoreError ErrorCode = "PUB_001"
	ErrCodeMessageQueue     ErrorCode = "PUB_002"
	ErrCodeChecksumMismatch ErrorCode = "PUB_003"
)

// Linkage Error Codes
const (
	ErrCodeLinkageIntegrity ErrorCode = "LNK_001"
)

// Short aliases.
const (
	CodeOK           = ErrCodeOK
	CodeUnknown      = ErrCodeUnknown
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeBuildBlocked = ErrCodeBuildBlocked
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the preview API.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeIO:                 http.StatusInternalServerError,
	ErrCodeConfig:             http.StatusInternalServerError,

	ErrCodeSchemaMissingColumn: http.StatusUnprocessableEntity,
	ErrCodeSchemaDuplicateID:   http.StatusUnprocessableEntity,
	ErrCodeSchemaInvariant:     http.StatusUnprocessableEntity,
	ErrCodeSchemaMalformed:     http.StatusUnprocessableEntity,

	ErrCodeBuildBlocked:    http.StatusConflict,
	ErrCodeReportMissing:   http.StatusNotFound,
	ErrCodeArtifactMissing: http.StatusNotFound,

	ErrCodeOverrideKeyMiss: http.StatusNotFound,
	ErrCodeOverrideInvalid: http.StatusUnprocessableEntity,

	ErrCodeObjectStoreError: http.StatusBadGateway,
	ErrCodeMessageQueue:     http.StatusBadGateway,
	ErrCodeChecksumMismatch: http.StatusConflict,

	ErrCodeLinkageIntegrity: http.StatusUnprocessableEntity,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeIO:                 "file system error",
	ErrCodeConfig:             "invalid configuration",

	ErrCodeSchemaMissingColumn: "required input column missing",
	ErrCodeSchemaDuplicateID:   "duplicate trial_id",
	ErrCodeSchemaInvariant:     "record invariant violated",
	ErrCodeSchemaMalformed:     "malformed input file",

	ErrCodeBuildBlocked:    "build blocked by unresolved critical flags",
	ErrCodeReportMissing:   "validation report not found",
	ErrCodeArtifactMissing: "required artifact not found",

	ErrCodeOverrideKeyMiss: "override key matched no record",
	ErrCodeOverrideInvalid: "invalid override value",

	ErrCodeObjectStoreError: "object store error",
	ErrCodeMessageQueue:     "message queue error",
	ErrCodeChecksumMismatch: "checksum mismatch",

	ErrCodeLinkageIntegrity: "event linkage integrity check failed",
}

// Process exit codes used by the CLI.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitBuildBlocked = 2
)

// HTTPStatusForCode returns the HTTP status for code, 500 when unmapped.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of code ("SCH_002" -> "SCH").
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return ""
}

// IsSchemaCode reports whether code belongs to the SchemaError family.
func IsSchemaCode(code ErrorCode) bool {
	return ModuleForCode(code) == "SCH"
}

//Personal.AI order the ending
